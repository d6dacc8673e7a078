package nfc

import (
	"context"
	"sync"
)

// FakeTransport is an in-memory Scanner/Writer for tests and the demo CLI.
type FakeTransport struct {
	mu          sync.Mutex
	scans       chan Scan
	written     [][]byte
	writeErr    error
	writeBlocks bool
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{scans: make(chan Scan, 8)}
}

func (f *FakeTransport) Scans() <-chan Scan { return f.scans }

// EmitScan injects a tag read into the stream.
func (f *FakeTransport) EmitScan(s Scan) { f.scans <- s }

func (f *FakeTransport) Close() { close(f.scans) }

// SetWriteErr makes subsequent writes fail with err.
func (f *FakeTransport) SetWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// SetWriteBlocks makes subsequent writes wait for ctx cancellation,
// simulating a tag that never shows up.
func (f *FakeTransport) SetWriteBlocks(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeBlocks = v
}

func (f *FakeTransport) Write(ctx context.Context, locatorBytes []byte) error {
	f.mu.Lock()
	blocks, err := f.writeBlocks, f.writeErr
	f.mu.Unlock()

	if blocks {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, locatorBytes)
	return nil
}

// Written returns a copy of all payloads written so far.
func (f *FakeTransport) Written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}
