package domain

import (
	"context"
	"errors"
	"net"
)

// Sentinel errors for domain operations
var (
	// ErrItemNotFound indicates the requested media item does not exist
	ErrItemNotFound = errors.New("media item not found")

	// ErrServerOffline indicates the media server is unreachable
	ErrServerOffline = errors.New("media server is unreachable")

	// ErrAuthFailed indicates authentication failed
	ErrAuthFailed = errors.New("authentication token is invalid")

	// ErrLibraryNotFound indicates the requested library does not exist
	ErrLibraryNotFound = errors.New("library not found")

	// ErrNoSession indicates no stored session exists for a server/user pair
	ErrNoSession = errors.New("no session for server and user")

	// ErrMissingParams indicates a job was started without its required identifiers
	ErrMissingParams = errors.New("missing required job parameters")
)

// IsConnectivity reports whether err means the server could not be reached.
// Connectivity failures are worth retrying; everything else is not.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrServerOffline) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
