// Package session contains the reactive controller that sequences scanning,
// recording, encryption, upload, navigation and decryption. Transitions are
// pure functions over State; side effects are returned as commands and
// executed by the Machine, never inside the reducer.
package session

import "bytes"

// Mode selects which flow the session is in.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeRead   Mode = "read"
)

// Step is the position within a mode's flow.
type Step string

const (
	StepIdle          Step = "idle"
	StepAwaitingToken Step = "awaitingToken"

	// create flow
	StepRecording  Step = "recording"
	StepReviewing  Step = "reviewing"
	StepEncrypting Step = "encrypting"
	StepUploading  Step = "uploading"
	StepPublished  Step = "published"

	// read flow
	StepDecrypting Step = "decrypting"
	StepPlaying    Step = "playing"
	StepFailed     Step = "failed"
)

// State is the single mutable record driving the UI. It is only ever mutated
// inside the machine's apply entry point; every mutation republishes the full
// state plus the list of changed keys.
//
// TokenSerial is a secret: it lives here only between a scan and its
// consumption and is scrubbed on teardown.
type State struct {
	Mode Mode
	Step Step

	TokenSerial    string
	MessageID      string
	ContentAddress string
	Timestamp      int64

	AudioBuffer     []byte
	Transcript      string
	DurationSeconds float64

	// PackageBytes holds the built package between encryption and upload so
	// a failed tag write can be retried without re-encrypting.
	PackageBytes []byte

	DecryptedAudio      []byte
	DecryptedTranscript string

	GatewayReady bool
	Status       string
	Err          error
}

// NewState returns the initial state for a page load in the given mode.
func NewState(mode Mode) State {
	return State{Mode: mode, Step: StepIdle}
}

// ChangedKeys lists the field names that differ between two states, in a
// fixed order. Subscribers use it to update only what moved.
func ChangedKeys(old, new State) []string {
	var keys []string
	add := func(name string, changed bool) {
		if changed {
			keys = append(keys, name)
		}
	}
	add("mode", old.Mode != new.Mode)
	add("step", old.Step != new.Step)
	add("tokenSerial", old.TokenSerial != new.TokenSerial)
	add("messageId", old.MessageID != new.MessageID)
	add("contentAddress", old.ContentAddress != new.ContentAddress)
	add("timestamp", old.Timestamp != new.Timestamp)
	add("audioBuffer", !bytes.Equal(old.AudioBuffer, new.AudioBuffer))
	add("transcript", old.Transcript != new.Transcript)
	add("durationSeconds", old.DurationSeconds != new.DurationSeconds)
	add("packageBytes", !bytes.Equal(old.PackageBytes, new.PackageBytes))
	add("decryptedAudio", !bytes.Equal(old.DecryptedAudio, new.DecryptedAudio))
	add("decryptedTranscript", old.DecryptedTranscript != new.DecryptedTranscript)
	add("gatewayReady", old.GatewayReady != new.GatewayReady)
	add("status", old.Status != new.Status)
	add("err", old.Err != new.Err)
	return keys
}
