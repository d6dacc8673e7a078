// Package capture defines the audio-capture boundary. Recording devices and
// speech-to-text live behind this contract; the core only sees the result.
package capture

import "context"

// Recording is the output of one capture session.
type Recording struct {
	Audio           []byte
	DurationSeconds float64
	Transcript      string
}

// Recorder is the capture collaborator contract.
type Recorder interface {
	// Start begins capturing audio.
	Start(ctx context.Context) error

	// Stop ends the capture and returns the recorded audio plus its
	// transcript.
	Stop(ctx context.Context) (*Recording, error)
}
