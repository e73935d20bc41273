package dggsclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

const excerptLen = 200

// TransportError covers connection, DNS and timeout failures. Callers may retry these.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dggs transport %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// HTTPStatusError is a non-2xx answer from the API.
type HTTPStatusError struct {
	URL         string
	Code        int
	BodyExcerpt string
}

func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("dggs status %d from %s", e.Code, e.URL)
	if ex := shorten(e.BodyExcerpt, excerptLen); ex != "" {
		msg += ": " + ex
	}
	if h := e.Hint(); h != "" {
		msg += " (" + h + ")"
	}
	return msg
}

func (e *HTTPStatusError) IsNotFound() bool { return e.Code == http.StatusNotFound }

// Hint lists the usual reasons the API rejects a request.
func (e *HTTPStatusError) Hint() string {
	if e.Code != http.StatusBadRequest {
		return ""
	}
	return "likely causes: bounding box too large, invalid DGGS system name, invalid zone id"
}

// DecodeError means the body was received but is not valid JSON.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("dggs decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsNotFound reports whether err carries a 404 from the API.
func IsNotFound(err error) bool {
	var se *HTTPStatusError
	return errors.As(err, &se) && se.IsNotFound()
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
