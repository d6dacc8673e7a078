package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/whispertag/whispertag/internal/common"
	"github.com/whispertag/whispertag/internal/locator"
)

// Reducer computes transitions. It is pure given its injected clock and id
// source, which makes every transition table-testable without mocks.
type Reducer struct {
	Now   func() time.Time
	NewID func() string
}

func NewReducer() Reducer {
	return Reducer{Now: time.Now, NewID: uuid.NewString}
}

// Reduce applies one event and returns the next state plus the commands to
// issue. It never performs side effects itself.
//
// Late results are dropped here: an event carrying a message id the state has
// moved past, or arriving in the wrong step, leaves the state untouched. A
// new event supersedes a stale one; there is no cancellation token threaded
// through the async chain.
func (r Reducer) Reduce(s State, ev Event) (State, []Command) {
	switch e := ev.(type) {

	case EvSessionStarted:
		s.MessageID = e.MessageID
		s.ContentAddress = e.ContentAddress
		s.Step = StepAwaitingToken
		if s.Mode == ModeRead {
			s.Status = "scan the tag to unlock this message"
			return r.checkAutoDecrypt(s)
		}
		s.Status = "scan a blank tag to begin"
		return s, nil

	case EvGatewayReady:
		s.GatewayReady = true
		if s.Mode == ModeRead {
			return r.checkAutoDecrypt(s)
		}
		return s, nil

	case EvTokenScanned:
		return r.reduceTokenScanned(s, e)

	case EvRecordingStarted:
		if s.Mode != ModeCreate || s.Step != StepAwaitingToken {
			return s, nil
		}
		if s.TokenSerial == "" {
			s.Err = common.ErrMissingPhysicalKey
			s.Status = "scan a tag before recording"
			return s, nil
		}
		s.Step = StepRecording
		s.Status = "recording"
		return s, nil

	case EvRecordingStopped:
		if s.Step != StepRecording {
			return s, nil
		}
		s.AudioBuffer = e.Audio
		s.DurationSeconds = e.DurationSeconds
		s.Transcript = e.Transcript
		s.Step = StepReviewing
		s.Status = "review your message"
		return s, nil

	case EvSaveRequested:
		return r.reduceSaveRequested(s)

	case EvEncrypted:
		if s.Step != StepEncrypting || e.MessageID != s.MessageID {
			return s, nil
		}
		s.PackageBytes = e.PackageBytes
		s.ContentAddress = e.ContentAddress
		s.Status = "hold a tag to the device to bind it"
		loc := locator.Locator{MessageID: s.MessageID, ContentAddress: s.ContentAddress}
		return s, []Command{CmdWriteTag{MessageID: s.MessageID, LocatorBytes: []byte(loc.Encode())}}

	case EvEncryptFailed:
		if s.Step != StepEncrypting || e.MessageID != s.MessageID {
			return s, nil
		}
		s.Step = StepReviewing
		s.Err = e.Err
		s.Status = "could not prepare the message"
		return s, nil

	case EvTagWritten:
		if s.Step != StepEncrypting || e.MessageID != s.MessageID {
			return s, nil
		}
		s.Step = StepUploading
		s.Status = "publishing"
		return s, []Command{CmdUpload{MessageID: s.MessageID, Data: s.PackageBytes}}

	case EvTagWriteFailed:
		if s.Step != StepEncrypting || e.MessageID != s.MessageID {
			return s, nil
		}
		// The package stays in state so a retry skips re-recording and
		// re-encryption; no upload has happened, so nothing is orphaned.
		s.Step = StepReviewing
		s.Err = e.Err
		s.Status = "tag write failed, save again to retry"
		return s, nil

	case EvUploaded:
		if s.Step != StepUploading || e.MessageID != s.MessageID {
			return s, nil
		}
		s.Step = StepPublished
		s.ContentAddress = e.ContentAddress
		s.TokenSerial = "" // the serial's job is done
		s.Err = nil
		s.Status = "published"
		return s, nil

	case EvUploadFailed:
		if s.Step != StepUploading || e.MessageID != s.MessageID {
			return s, nil
		}
		s.Step = StepReviewing
		s.Err = e.Err
		s.Status = "publishing failed, save again to retry"
		return s, nil

	case EvPackageDownloaded:
		if s.Step != StepDecrypting || e.MessageID != s.MessageID {
			return s, nil
		}
		return s, []Command{CmdDecrypt{MessageID: s.MessageID, Serial: s.TokenSerial, Data: e.Data}}

	case EvDownloadFailed:
		if s.Step != StepDecrypting || e.MessageID != s.MessageID {
			return s, nil
		}
		s.Step = StepFailed
		s.Err = e.Err
		s.Status = "storage unavailable, scan again to retry"
		return s, nil

	case EvPackageDecrypted:
		if s.Step != StepDecrypting || e.MessageID != s.MessageID {
			return s, nil
		}
		s.Step = StepPlaying
		s.DecryptedAudio = e.Audio
		s.DecryptedTranscript = e.Transcript
		s.DurationSeconds = e.DurationSeconds
		s.Err = nil
		s.Status = "playing"
		return s, nil

	case EvDecryptionFailed:
		if s.Step != StepDecrypting || e.MessageID != s.MessageID {
			return s, nil
		}
		s.Step = StepFailed
		s.Err = e.Err
		s.Status = "this tag cannot open the message"
		return s, nil

	case EvPlayerClosed:
		// Security teardown: the serial and everything derived from the
		// decrypted payload leave the state before the mode switches back.
		s = NewState(ModeCreate)
		s.Status = "closed"
		return s, []Command{CmdRevokeAudio{}}
	}

	return s, nil
}

func (r Reducer) reduceTokenScanned(s State, e EvTokenScanned) (State, []Command) {
	if e.Serial == "" {
		// Hard error, not a placeholder. An invented serial would bind the
		// message to nothing.
		s.Err = common.ErrMissingPhysicalKey
		s.Status = "tag read failed, try again"
		return s, nil
	}

	scanned, scanErr := decodeScanLocator(e.Locator)

	switch s.Mode {
	case ModeCreate:
		if scanErr == nil && scanned != nil {
			// The tag already points at a message; hand the serial across
			// the navigation, it cannot survive in memory.
			return s, []Command{
				CmdStashSerial{Serial: e.Serial, Bound: *scanned},
				CmdNavigate{Target: *scanned},
			}
		}
		s.TokenSerial = e.Serial
		s.Err = nil
		s.Status = "tag captured, ready to record"
		return s, nil

	case ModeRead:
		current := locator.Locator{MessageID: s.MessageID, ContentAddress: s.ContentAddress}
		if scanErr == nil && scanned != nil && !scanned.Equal(current) {
			// A different message: navigate, relaying the serial.
			return s, []Command{
				CmdStashSerial{Serial: e.Serial, Bound: *scanned},
				CmdNavigate{Target: *scanned},
			}
		}
		// Same message (or a bare serial): use the fresh serial directly, no
		// relay round-trip.
		s.TokenSerial = e.Serial
		if s.Step == StepFailed {
			s.Step = StepAwaitingToken
		}
		s.Err = nil
		return r.checkAutoDecrypt(s)
	}

	return s, nil
}

func (r Reducer) reduceSaveRequested(s State) (State, []Command) {
	if s.Mode != ModeCreate || s.Step != StepReviewing {
		return s, nil
	}
	if s.TokenSerial == "" {
		s.Err = common.ErrMissingPhysicalKey
		s.Status = "the tag is gone, scan it again"
		return s, nil
	}

	if len(s.PackageBytes) > 0 {
		// Retry path after a failed write or upload: the package and its
		// address are still valid, only the tag write is re-issued.
		s.Step = StepEncrypting
		s.Err = nil
		s.Status = "hold a tag to the device to bind it"
		loc := locator.Locator{MessageID: s.MessageID, ContentAddress: s.ContentAddress}
		return s, []Command{CmdWriteTag{MessageID: s.MessageID, LocatorBytes: []byte(loc.Encode())}}
	}

	s.MessageID = r.NewID()
	s.Timestamp = r.Now().UnixMilli()
	s.Step = StepEncrypting
	s.Err = nil
	s.Status = "encrypting"
	return s, []Command{CmdEncrypt{
		MessageID:       s.MessageID,
		Timestamp:       s.Timestamp,
		Serial:          s.TokenSerial,
		Audio:           s.AudioBuffer,
		Transcript:      s.Transcript,
		DurationSeconds: s.DurationSeconds,
	}}
}

// checkAutoDecrypt fires the single decrypt attempt once the serial, the
// message id, the content address and gateway readiness are all present. The
// four inputs arrive asynchronously in any order; the step check guarantees
// exactly one attempt regardless of ordering, and no second attempt while one
// is in flight or after playback started.
func (r Reducer) checkAutoDecrypt(s State) (State, []Command) {
	if s.Mode != ModeRead || s.Step != StepAwaitingToken {
		return s, nil
	}
	if s.TokenSerial == "" || s.MessageID == "" || s.ContentAddress == "" || !s.GatewayReady {
		return s, nil
	}
	s.Step = StepDecrypting
	s.Status = "decrypting"
	return s, []Command{CmdDownload{MessageID: s.MessageID, ContentAddress: s.ContentAddress}}
}

// decodeScanLocator parses the locator read off a tag. A blank tag returns
// (nil, nil); a malformed fragment is reported so the scan can be rejected
// rather than misrouted.
func decodeScanLocator(fragment string) (*locator.Locator, error) {
	if fragment == "" {
		return nil, nil
	}
	loc, err := locator.Decode(fragment)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}
