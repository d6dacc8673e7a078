// Package relay carries a freshly scanned tag serial across a session
// reconstruction boundary. It is a single-use handoff, not a cache: the serial
// survives exactly one navigation, bound to one locator, for one TTL window.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/whispertag/whispertag/internal/common"
	"github.com/whispertag/whispertag/internal/locator"
)

// DefaultTTL is the default expiry window for a stashed serial.
const DefaultTTL = 45 * time.Second

// Record is a stashed physical key. It never leaves the relay's store.
type Record struct {
	TokenSerial  string
	BoundLocator string
	CapturedAt   time.Time
}

// Store is the page-scoped backing storage for the single relay slot.
// Put replaces any previous record; there is never more than one. Take
// atomically removes and returns the slot (nil when empty), so a record can
// never be restored twice.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Take(ctx context.Context) (*Record, error)
}

// Relay stashes and restores a tag serial around a navigation.
type Relay struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func New(store Store, ttl time.Duration) *Relay {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Relay{store: store, ttl: ttl, now: time.Now}
}

// Stash records serial bound to the locator the navigation is heading to.
func (r *Relay) Stash(ctx context.Context, tokenSerial string, bound locator.Locator) error {
	if tokenSerial == "" {
		return common.ErrMissingPhysicalKey
	}
	rec := Record{
		TokenSerial:  tokenSerial,
		BoundLocator: bound.Encode(),
		CapturedAt:   r.now(),
	}
	if err := r.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("stashing physical key: %w", err)
	}
	return nil
}

// TryRestore returns the stashed serial when a record exists, is within TTL,
// and is bound to current. The record is consumed on every outcome: an
// expired or mismatched serial must not linger for a later retry, and a
// successful restore is single-use.
func (r *Relay) TryRestore(ctx context.Context, current locator.Locator) (string, error) {
	rec, err := r.store.Take(ctx)
	if err != nil {
		return "", fmt.Errorf("taking physical key slot: %w", err)
	}
	if rec == nil {
		return "", common.ErrMissingPhysicalKey
	}

	if r.now().Sub(rec.CapturedAt) > r.ttl {
		return "", common.ErrRelayExpired
	}
	if rec.BoundLocator != current.Encode() {
		return "", common.ErrRelayMismatch
	}
	return rec.TokenSerial, nil
}
