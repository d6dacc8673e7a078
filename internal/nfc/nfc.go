// Package nfc defines the tag transport boundary. The core only depends on
// this shape; reader hardware, permissions and platform APIs live behind it.
package nfc

import (
	"context"
	"time"

	"github.com/whispertag/whispertag/internal/common"
)

// DefaultWriteTimeout bounds a single tag-write attempt.
const DefaultWriteTimeout = 15 * time.Second

// Scan is one tag read. Serial is never empty; a transport that cannot read
// the serial must drop the scan instead of inventing a placeholder, because a
// placeholder silently defeats the physical-binding guarantee. Locator is the
// fragment stored on the tag, empty for a blank tag.
type Scan struct {
	Serial  string
	Locator string
}

// Scanner delivers tag reads as a push stream.
type Scanner interface {
	// Scans returns the channel tag reads arrive on. Closed when the
	// transport shuts down.
	Scans() <-chan Scan
}

// Writer writes a locator payload onto a tag.
type Writer interface {
	// Write stores locatorBytes on the next presented tag. It must respect
	// ctx and return common.ErrWriteTimeout when the attempt exceeds its
	// bound; the caller treats that as retryable.
	Write(ctx context.Context, locatorBytes []byte) error
}

// WriteWithTimeout runs w.Write bounded by timeout, mapping a deadline hit to
// common.ErrWriteTimeout.
func WriteWithTimeout(ctx context.Context, w Writer, locatorBytes []byte, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Write(ctx, locatorBytes) }()

	select {
	case err := <-done:
		if err != nil && ctx.Err() != nil {
			return common.ErrWriteTimeout
		}
		return err
	case <-ctx.Done():
		return common.ErrWriteTimeout
	}
}
