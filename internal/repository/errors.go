package repository

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/lib/pq"
)

// ErrConnectionExhausted is returned when every connection attempt failed with a
// transient error.
var ErrConnectionExhausted = errors.New("database connection attempts exhausted")

// transientError marks a failure the database is expected to recover from on its own.
type transientError struct {
	err error
}

func (e *transientError) Error() string   { return e.err.Error() }
func (e *transientError) Unwrap() error   { return e.err }
func (e *transientError) Transient() bool { return true }

// IsTransient reports whether err carries the Transient capability.
// Errors without it are treated as permanent.
func IsTransient(err error) bool {
	var t interface{ Transient() bool }
	return errors.As(err, &t) && t.Transient()
}

// MarkTransient wraps err so that IsTransient reports true.
func MarkTransient(err error) error {
	if err == nil || IsTransient(err) {
		return err
	}
	return &transientError{err: err}
}

// classifyDialError tags connection failures that mean "server not reachable yet".
func classifyDialError(err error) error {
	if err == nil {
		return nil
	}
	if isUnreachable(err) {
		return MarkTransient(err)
	}
	return err
}

// Messages libpq-compatible servers and drivers emit while the host is not ready.
var unreachablePatterns = []string{
	"could not translate host name",
	"is the server running on host",
	"connection refused",
	"no such host",
	"the database system is starting up",
}

func isUnreachable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 08xxx connection exceptions, 57P03 cannot_connect_now
		return pqErr.Code.Class() == "08" || pqErr.Code == "57P03"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range unreachablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
