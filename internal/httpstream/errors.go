package httpstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

var (
	// ErrBind indicates the configured source address could not be resolved or bound.
	ErrBind = errors.New("httpstream: source bind failed")

	// ErrIdleTimeout indicates no stream bytes arrived within the read timeout.
	ErrIdleTimeout = errors.New("httpstream: read idle timeout")
)

// StatusError is returned when the camera answers with anything but 200 OK.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("httpstream: unexpected status %s", e.Status)
	}
	return fmt.Sprintf("httpstream: unexpected status %d", e.Code)
}

// ErrorClass represents the classification of connection errors for log
// throttling and telemetry
type ErrorClass int

const (
	// ClassTimeout indicates dial, header or idle-read timeouts
	ClassTimeout ErrorClass = iota
	// ClassConnection indicates refused/reset/closed connections and DNS failures
	ClassConnection
	// ClassStatus indicates a non-200 HTTP response
	ClassStatus
	// ClassBind indicates the source address could not be used
	ClassBind
	// ClassUnknown indicates unclassified errors
	ClassUnknown
)

// AllClasses lists every class, in declaration order.
var AllClasses = []ErrorClass{ClassTimeout, ClassConnection, ClassStatus, ClassBind, ClassUnknown}

// String returns a human-readable string representation of the error class
func (c ErrorClass) String() string {
	switch c {
	case ClassTimeout:
		return "timeout"
	case ClassConnection:
		return "connection"
	case ClassStatus:
		return "status"
	case ClassBind:
		return "bind"
	default:
		return "unknown"
	}
}

// Classify categorizes an error returned by a connection attempt or a body read.
//
// Typed checks come first; message keywords are the fallback for errors that
// lost their type on the way up (e.g., flattened by a proxy or TLS layer).
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	// Priority 1: bind failures (most specific)
	if errors.Is(err, ErrBind) || isBindErrno(err) {
		return ClassBind
	}

	// Priority 2: HTTP status
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return ClassStatus
	}

	// Priority 3: timeouts
	if errors.Is(err, ErrIdleTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}

	// Priority 4: connection-level failures
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return ClassConnection
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return ClassConnection
	}

	return classifyByKeywords(strings.ToLower(err.Error()))
}

func isBindErrno(err error) bool {
	return errors.Is(err, syscall.EADDRNOTAVAIL) || errors.Is(err, syscall.EADDRINUSE)
}

func classifyByKeywords(msg string) ErrorClass {
	timeoutKeywords := []string{
		"timeout",
		"timed out",
		"deadline exceeded",
	}
	connectionKeywords := []string{
		"connection",
		"refused",
		"reset",
		"broken pipe",
		"unreachable",
		"no route",
		"no such host",
		"eof",
	}

	for _, kw := range timeoutKeywords {
		if strings.Contains(msg, kw) {
			return ClassTimeout
		}
	}
	for _, kw := range connectionKeywords {
		if strings.Contains(msg, kw) {
			return ClassConnection
		}
	}
	return ClassUnknown
}
