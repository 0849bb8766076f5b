package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	ChannelPing      = "spot.ping"
	ChannelPong      = "spot.pong"
	ChannelOrderBook = "spot.order_book"
)

// EventKind is the value of the "event" field of a channel frame.
type EventKind string

const (
	EventSubscribe   EventKind = "subscribe"
	EventUnsubscribe EventKind = "unsubscribe"
	EventUpdate      EventKind = "update"
)

// WsResponse is one decoded inbound frame. ID echoes the id of the client
// request being acknowledged and is nil for server initiated pushes.
type WsResponse struct {
	Time    int64
	ID      *int64
	Payload WsPayload
}

// WsPayload is the channel specific part of a frame: Pong or OrderBookMessage.
type WsPayload interface {
	Channel() string
	wsPayload()
}

// Pong answers a spot.ping. It carries no event and no result.
type Pong struct{}

func (Pong) Channel() string { return ChannelPong }
func (Pong) wsPayload()      {}

// OrderBookMessage is a spot.order_book frame.
type OrderBookMessage struct {
	Event WsEvent[OrderBookSnapshot]
}

func (OrderBookMessage) Channel() string { return ChannelOrderBook }
func (OrderBookMessage) wsPayload()      {}

// WsEvent is one of Subscribe, Unsubscribe or Update for a channel whose
// update payload has type T.
type WsEvent[T any] interface {
	Kind() EventKind
	wsEvent(T)
}

// Ignored stands in for acknowledgement payloads whose content carries no
// meaning beyond success.
type Ignored struct{}

func (*Ignored) UnmarshalJSON([]byte) error { return nil }

type Subscribe[T any] struct {
	Result WsResult[Ignored]
}

func (Subscribe[T]) Kind() EventKind { return EventSubscribe }
func (Subscribe[T]) wsEvent(T)       {}

type Unsubscribe[T any] struct {
	Result WsResult[Ignored]
}

func (Unsubscribe[T]) Kind() EventKind { return EventUnsubscribe }
func (Unsubscribe[T]) wsEvent(T)       {}

type Update[T any] struct {
	Result WsResult[T]
}

func (Update[T]) Kind() EventKind { return EventUpdate }
func (Update[T]) wsEvent(T)       {}

// WsResult holds either a server error or a payload. IsErr is the tag; Err is
// only set when it is true and Value only when it is false.
type WsResult[T any] struct {
	IsErr bool
	Err   *WsErr
	Value T
}

func Ok[T any](v T) WsResult[T] {
	return WsResult[T]{Value: v}
}

func Fail[T any](e WsErr) WsResult[T] {
	return WsResult[T]{IsErr: true, Err: &e}
}

// Unwrap returns the payload, or the server error as an error value.
func (r WsResult[T]) Unwrap() (T, error) {
	if r.IsErr {
		var zero T
		return zero, r.Err
	}
	return r.Value, nil
}

// WsErrCode is the numeric code of a channel error.
type WsErrCode int

const (
	WsErrInvalidRequestBody WsErrCode = 1
	WsErrInvalidArgument    WsErrCode = 2
	WsErrServerError        WsErrCode = 3
)

func (c WsErrCode) String() string {
	switch c {
	case WsErrInvalidRequestBody:
		return "InvalidRequestBody"
	case WsErrInvalidArgument:
		return "InvalidArgument"
	case WsErrServerError:
		return "ServerError"
	default:
		return fmt.Sprintf("WsErrCode(%d)", int(c))
	}
}

// WsErr is the error object the server returns in place of a result.
type WsErr struct {
	Code    WsErrCode `json:"code"`
	Message string    `json:"message"`
}

func (e *WsErr) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, int(e.Code), e.Message)
}

type frameWire struct {
	Time    *int64          `json:"time"`
	ID      *int64          `json:"id"`
	Channel *string         `json:"channel"`
	Event   string          `json:"event"`
	Error   json.RawMessage `json:"error"`
	Result  json.RawMessage `json:"result"`
}

var (
	errBothErrorAndResult = errors.New("frame carries both error and result")
	errNoErrorOrResult    = errors.New("frame carries neither error nor result")
)

// DecodeWsResponse decodes one inbound frame. It returns a *DecodeError for
// malformed frames and a *ProtocolError for channels or events it does not know.
func DecodeWsResponse(data []byte) (WsResponse, error) {
	var w frameWire
	if err := json.Unmarshal(data, &w); err != nil {
		return WsResponse{}, decodeErrorAt("", err)
	}
	if w.Time == nil {
		return WsResponse{}, &DecodeError{Path: "time", Err: errRequired}
	}
	if w.Channel == nil {
		return WsResponse{}, &DecodeError{Path: "channel", Err: errRequired}
	}

	resp := WsResponse{Time: *w.Time, ID: w.ID}

	switch *w.Channel {
	case ChannelPong:
		resp.Payload = Pong{}
	case ChannelOrderBook:
		ev, err := decodeEvent[OrderBookSnapshot](&w)
		if err != nil {
			return WsResponse{}, err
		}
		resp.Payload = OrderBookMessage{Event: ev}
	default:
		return WsResponse{}, &ProtocolError{Kind: ErrUnknownChannel, Channel: *w.Channel, Event: w.Event, ID: w.ID}
	}
	return resp, nil
}

func decodeEvent[T any](w *frameWire) (WsEvent[T], error) {
	switch EventKind(w.Event) {
	case EventSubscribe:
		r, err := decodeResult[Ignored](w)
		if err != nil {
			return nil, err
		}
		return Subscribe[T]{Result: r}, nil
	case EventUnsubscribe:
		r, err := decodeResult[Ignored](w)
		if err != nil {
			return nil, err
		}
		return Unsubscribe[T]{Result: r}, nil
	case EventUpdate:
		r, err := decodeResult[T](w)
		if err != nil {
			return nil, err
		}
		return Update[T]{Result: r}, nil
	default:
		return nil, &ProtocolError{Kind: ErrUnknownEvent, Channel: *w.Channel, Event: w.Event, ID: w.ID}
	}
}

func decodeResult[T any](w *frameWire) (WsResult[T], error) {
	hasErr, hasResult := present(w.Error), present(w.Result)
	switch {
	case hasErr && hasResult:
		return WsResult[T]{}, &DecodeError{Err: errBothErrorAndResult}
	case !hasErr && !hasResult:
		return WsResult[T]{}, &DecodeError{Err: errNoErrorOrResult}
	case hasErr:
		var e WsErr
		if err := json.Unmarshal(w.Error, &e); err != nil {
			return WsResult[T]{}, decodeErrorAt("error", err)
		}
		return Fail[T](e), nil
	default:
		var v T
		if err := json.Unmarshal(w.Result, &v); err != nil {
			return WsResult[T]{}, decodeErrorAt("result", err)
		}
		return Ok(v), nil
	}
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
