// Package netutil classifies transport failures seen while calling the Bot API.
package netutil

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// ShouldRetry reports whether err is a transient transport failure:
// timeouts, failed dials, temporary DNS errors and connections reset
// mid-request. Cancellation is never retried.
func ShouldRetry(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED):
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
