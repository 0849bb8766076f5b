package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/go-querystring/query"

	"gateflow/api"
	gatemetrics "gateflow/internal/metrics/gate"
	ratemetrics "gateflow/internal/metrics/rate"
	"gateflow/logger"
)

// Do performs exactly one call for req at path (relative to the version
// segment, e.g. "/spot/tickers") and decodes the response into R.
//
// Public endpoints never reach the signer. Private endpoints are signed once
// with a fresh timestamp. Errors are *ConfigurationError, *TransportError,
// *APIError or *DecodeError.
func Do[R any](ctx context.Context, c *Client, path string, req api.Request[R]) (R, error) {
	var zero R
	ep := req.Endpoint()
	fullPath := c.basePath + string(ep.Version) + path

	q, body, err := encodeParams(ep.Method, req)
	if err != nil {
		return zero, err
	}

	headers := map[string]string{}
	if !ep.Public {
		if c.signer == nil {
			return zero, &ConfigurationError{Field: "signer", Reason: "is required for private endpoint " + path}
		}
		sig, err := c.signer.Sign(SignMaterial{Method: ep.Method, Path: fullPath, Query: q, Body: body})
		if err != nil {
			return zero, err
		}
		headers = sig.Headers()
	}

	target := c.baseURL + string(ep.Version) + path
	if q != "" {
		target += "?" + q
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, &TransportError{Method: ep.Method, Path: fullPath, Err: err}
		}
	}

	log := c.log.WithComponent("gate_rest").WithFields(logger.Fields{
		"method": string(ep.Method),
		"path":   fullPath,
		"public": ep.Public,
	})

	r := c.http.R().SetContext(ctx).SetHeaders(headers)
	if body != nil {
		r.SetBody(body)
	}

	start := time.Now()
	resp, err := r.Execute(string(ep.Method), target)
	logger.RecordRestCall(err != nil)
	if err != nil {
		log.WithError(err).Warn("gate request failed")
		return zero, &TransportError{Method: ep.Method, Path: fullPath, Err: err}
	}

	status := resp.StatusCode()
	raw := resp.Body()
	gatemetrics.ReportRateLimit(c.log, resp.Header(), "gate_rest", path)

	log = log.WithFields(logger.Fields{
		"status":      status,
		"duration_ms": float64(time.Since(start).Nanoseconds()) / 1e6,
		"bytes":       len(raw),
	})

	if status < 200 || status > 299 {
		if apiErr := parseAPIError(ep.Method, fullPath, status, resp.Header(), raw); apiErr != nil {
			if apiErr.TooManyRequests() {
				ratemetrics.ReportRateLimitExceeded(c.log, "gate", path, "", "rest")
			}
			log.WithFields(logger.Fields{"label": apiErr.Label}).Warn("gate api error")
			return zero, apiErr
		}
		log.Warn("gate request returned unexpected status")
		return zero, &TransportError{Method: ep.Method, Path: fullPath, StatusCode: status, Body: snippet(raw)}
	}

	log.Debug("gate request completed")
	return decodeBody[R](ep.Method, fullPath, raw)
}

// encodeParams returns the query string for GET and DELETE requests and the
// JSON body for POST and PUT requests.
func encodeParams(method api.Method, req any) (string, []byte, error) {
	if method.HasBody() {
		body, err := json.Marshal(req)
		if err != nil {
			return "", nil, &ConfigurationError{Field: fmt.Sprintf("%T", req), Reason: "cannot be encoded: " + err.Error()}
		}
		return "", body, nil
	}
	values, err := query.Values(req)
	if err != nil {
		return "", nil, &ConfigurationError{Field: fmt.Sprintf("%T", req), Reason: "cannot be encoded: " + err.Error()}
	}
	return values.Encode(), nil, nil
}

func decodeBody[R any](method api.Method, path string, raw []byte) (R, error) {
	var out R
	if len(bytes.TrimSpace(raw)) == 0 {
		if _, ok := any(out).(api.Empty); ok {
			return out, nil
		}
		return out, &DecodeError{Method: method, Path: path, Err: errEmptyBody}
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		de := &DecodeError{Method: method, Path: path, Snippet: snippet(raw), Err: err}
		var te *json.UnmarshalTypeError
		var se *json.SyntaxError
		switch {
		case errors.As(err, &te):
			de.Field, de.Offset = te.Field, te.Offset
		case errors.As(err, &se):
			de.Offset = se.Offset
		}
		return out, de
	}

	if field, err := validate(out); err != nil {
		return out, &DecodeError{Method: method, Path: path, Field: field, Snippet: snippet(raw), Err: err}
	}
	return out, nil
}

// validate runs api.Validator on v, or on each element when v is a slice,
// and returns the path of the first failure.
func validate(v any) (string, error) {
	if val, ok := v.(api.Validator); ok {
		return fieldOf("", val.Validate())
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return "", nil
	}
	for i := 0; i < rv.Len(); i++ {
		val, ok := rv.Index(i).Interface().(api.Validator)
		if !ok {
			return "", nil
		}
		if field, err := fieldOf("["+strconv.Itoa(i)+"]", val.Validate()); err != nil {
			return field, err
		}
	}
	return "", nil
}

func fieldOf(prefix string, err error) (string, error) {
	if err == nil {
		return "", nil
	}
	var fe *api.FieldError
	if errors.As(err, &fe) {
		if prefix == "" {
			return fe.Field, err
		}
		return prefix + "." + fe.Field, err
	}
	return prefix, err
}
