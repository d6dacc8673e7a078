// Package gateway gives the session machine access to content-addressed
// storage. Implementations differ in transport; the contract is the same:
// upload returns the content address of the stored bytes, download fetches
// them back by address.
package gateway

import "context"

// Gateway is the storage collaborator contract.
type Gateway interface {
	// Upload stores data and returns its content address. The id is a hint
	// for backends that want a stable name alongside the address.
	Upload(ctx context.Context, data []byte, id string) (string, error)

	// Download fetches the bytes stored at the given content address.
	Download(ctx context.Context, contentAddress string) ([]byte, error)

	// Ready reports whether the gateway is usable. The session machine waits
	// for readiness before attempting a decrypt.
	Ready() bool
}
