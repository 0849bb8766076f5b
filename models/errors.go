package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// DecodeError reports a frame that does not match the expected schema. Path
// locates the offending element, for example "result.bids[2]".
type DecodeError struct {
	Path   string
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode ws frame: %v", e.Err)
	}
	return fmt.Sprintf("decode ws frame at %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// decodeErrorAt wraps err with the location it happened at, keeping any
// deeper path already recorded by a nested decoder or by encoding/json.
func decodeErrorAt(prefix string, err error) *DecodeError {
	var de *DecodeError
	if errors.As(err, &de) {
		return &DecodeError{Path: joinPath(prefix, de.Path), Offset: de.Offset, Err: de.Err}
	}
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		return &DecodeError{Path: joinPath(prefix, te.Field), Offset: te.Offset, Err: err}
	}
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return &DecodeError{Path: prefix, Offset: se.Offset, Err: err}
	}
	return &DecodeError{Path: prefix, Err: err}
}

func joinPath(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	case path[0] == '[':
		return prefix + path
	default:
		return prefix + "." + path
	}
}

func indexPath(field string, i int) string {
	return field + "[" + strconv.Itoa(i) + "]"
}

// ProtocolErrorKind classifies a protocol violation.
type ProtocolErrorKind int

const (
	ErrUnknownChannel ProtocolErrorKind = iota + 1
	ErrUnknownEvent
	ErrEventMismatch
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case ErrUnknownChannel:
		return "unknown channel"
	case ErrUnknownEvent:
		return "unknown event"
	case ErrEventMismatch:
		return "event mismatch"
	default:
		return "protocol error"
	}
}

// ProtocolError is a well formed frame that the protocol does not allow at
// this point: an unrecognised channel or event, or an acknowledgement that
// does not match the request it answers.
type ProtocolError struct {
	Kind     ProtocolErrorKind
	Channel  string
	Event    string
	Expected EventKind
	ID       *int64
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("ws protocol: %s", e.Kind)
	if e.Channel != "" {
		msg += fmt.Sprintf(" channel=%q", e.Channel)
	}
	if e.Event != "" || e.Kind == ErrUnknownEvent {
		msg += fmt.Sprintf(" event=%q", e.Event)
	}
	if e.Expected != "" {
		msg += fmt.Sprintf(" expected=%q", e.Expected)
	}
	if e.ID != nil {
		msg += fmt.Sprintf(" id=%d", *e.ID)
	}
	return msg
}
