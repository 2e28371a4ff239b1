// Package routererr defines the Router's closed set of error kinds and the
// HTTP status each maps to, so the Dispatcher can translate any internal
// failure into the right client-protocol error envelope without inspecting
// error strings.
package routererr

import "fmt"

type Kind int

const (
	InvalidRequest Kind = iota
	AuthError
	AliasUnknown
	NoKeysAvailable
	UpstreamHTTPError
	UpstreamDecodeError
	StreamInterrupted
	ToolXMLParseError
	InternalError
)

func (k Kind) String() string {
	switch k {
	case InvalidRequest:
		return "invalid_request"
	case AuthError:
		return "auth_error"
	case AliasUnknown:
		return "alias_unknown"
	case NoKeysAvailable:
		return "no_keys_available"
	case UpstreamHTTPError:
		return "upstream_http_error"
	case UpstreamDecodeError:
		return "upstream_decode_error"
	case StreamInterrupted:
		return "stream_interrupted"
	case ToolXMLParseError:
		return "tool_xml_parse_error"
	case InternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// HTTPStatus returns the status code a bare occurrence of this kind maps to.
// UpstreamHTTPError is special-cased by callers since its status is whatever
// the upstream actually returned.
func (k Kind) HTTPStatus() int {
	switch k {
	case InvalidRequest:
		return 400
	case AuthError:
		return 401
	case AliasUnknown:
		return 404
	case NoKeysAvailable:
		return 503
	case UpstreamHTTPError:
		return 502
	case UpstreamDecodeError:
		return 502
	case InternalError:
		return 500
	default:
		return 500
	}
}

// Error wraps a Kind with context and an optional upstream status override.
type Error struct {
	Kind           Kind
	Msg            string
	UpstreamStatus int // only meaningful for UpstreamHTTPError; 0 means "use Kind.HTTPStatus()"
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Status() int {
	if e.Kind == UpstreamHTTPError && e.UpstreamStatus != 0 {
		return e.UpstreamStatus
	}
	return e.Kind.HTTPStatus()
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Upstream(status int, msg string) *Error {
	return &Error{Kind: UpstreamHTTPError, Msg: msg, UpstreamStatus: status}
}
