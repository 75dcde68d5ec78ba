package remote

import (
	"context"
	"errors"
	"net"
	"syscall"
)

var (
	ErrNotFound          = errors.New("remote: not found")
	ErrAlreadyExists     = errors.New("remote: already exists")
	ErrDeletedOrArchived = errors.New("remote: deleted or archived")
	ErrTimeout           = errors.New("remote: timeout")
	ErrUnauthorized      = errors.New("remote: unauthorized")
)

// IsTimeout reports transient errors worth retrying as is.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsConnection reports errors meaning the service cannot be reached at all.
func IsConnection(err error) bool {
	if err == nil {
		return false
	}
	if IsTimeout(err) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
