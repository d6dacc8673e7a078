package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/whispertag/whispertag/internal/common"
)

func testReducer() Reducer {
	return Reducer{
		Now:   func() time.Time { return time.UnixMilli(1700000000000) },
		NewID: func() string { return "msg-1" },
	}
}

func apply(t *testing.T, r Reducer, s State, evs ...Event) (State, []Command) {
	t.Helper()
	var cmds []Command
	for _, ev := range evs {
		var out []Command
		s, out = r.Reduce(s, ev)
		cmds = append(cmds, out...)
	}
	return s, cmds
}

func TestCreateFlow_HappyPath(t *testing.T) {
	r := testReducer()
	s := NewState(ModeCreate)

	s, cmds := apply(t, r, s, EvSessionStarted{})
	require.Equal(t, StepAwaitingToken, s.Step)
	require.Empty(t, cmds)

	s, cmds = apply(t, r, s, EvTokenScanned{Serial: "04A1B2C3"})
	require.Equal(t, "04A1B2C3", s.TokenSerial)
	require.Empty(t, cmds)

	s, _ = apply(t, r, s, EvRecordingStarted{})
	require.Equal(t, StepRecording, s.Step)

	s, _ = apply(t, r, s, EvRecordingStopped{Audio: []byte{1, 2, 3}, DurationSeconds: 3, Transcript: "hello"})
	require.Equal(t, StepReviewing, s.Step)

	s, cmds = apply(t, r, s, EvSaveRequested{})
	require.Equal(t, StepEncrypting, s.Step)
	require.Equal(t, "msg-1", s.MessageID)
	require.Equal(t, int64(1700000000000), s.Timestamp)
	require.Len(t, cmds, 1)
	enc, ok := cmds[0].(CmdEncrypt)
	require.True(t, ok)
	require.Equal(t, "04A1B2C3", enc.Serial)
	require.Equal(t, "hello", enc.Transcript)

	s, cmds = apply(t, r, s, EvEncrypted{MessageID: "msg-1", PackageBytes: []byte("pkg"), ContentAddress: "addr-1"})
	require.Len(t, cmds, 1)
	write, ok := cmds[0].(CmdWriteTag)
	require.True(t, ok)
	require.Contains(t, string(write.LocatorBytes), "id=msg-1")
	require.NotContains(t, string(write.LocatorBytes), "04A1B2C3")

	s, cmds = apply(t, r, s, EvTagWritten{MessageID: "msg-1"})
	require.Equal(t, StepUploading, s.Step)
	require.Len(t, cmds, 1)
	_, ok = cmds[0].(CmdUpload)
	require.True(t, ok)

	s, cmds = apply(t, r, s, EvUploaded{MessageID: "msg-1", ContentAddress: "addr-1"})
	require.Equal(t, StepPublished, s.Step)
	require.Empty(t, cmds)
	require.Empty(t, s.TokenSerial, "serial must be scrubbed once published")
}

func TestCreateFlow_TagWriteRetrySkipsEncryption(t *testing.T) {
	r := testReducer()
	s := NewState(ModeCreate)
	s, _ = apply(t, r, s,
		EvSessionStarted{},
		EvTokenScanned{Serial: "04A1B2C3"},
		EvRecordingStarted{},
		EvRecordingStopped{Audio: []byte{1}, DurationSeconds: 1, Transcript: "x"},
		EvSaveRequested{},
		EvEncrypted{MessageID: "msg-1", PackageBytes: []byte("pkg"), ContentAddress: "addr-1"},
	)

	s, _ = apply(t, r, s, EvTagWriteFailed{MessageID: "msg-1", Err: common.ErrWriteTimeout})
	require.Equal(t, StepReviewing, s.Step)
	require.ErrorIs(t, s.Err, common.ErrWriteTimeout)
	require.NotEmpty(t, s.PackageBytes, "package survives for retry")

	s, cmds := apply(t, r, s, EvSaveRequested{})
	require.Equal(t, StepEncrypting, s.Step)
	require.Len(t, cmds, 1)
	_, isWrite := cmds[0].(CmdWriteTag)
	require.True(t, isWrite, "retry must go straight to the tag write, not re-encrypt")
}

func TestCreateFlow_UploadFailureRetryable(t *testing.T) {
	r := testReducer()
	s := NewState(ModeCreate)
	s, _ = apply(t, r, s,
		EvSessionStarted{},
		EvTokenScanned{Serial: "04A1B2C3"},
		EvRecordingStarted{},
		EvRecordingStopped{Audio: []byte{1}, DurationSeconds: 1, Transcript: "x"},
		EvSaveRequested{},
		EvEncrypted{MessageID: "msg-1", PackageBytes: []byte("pkg"), ContentAddress: "addr-1"},
		EvTagWritten{MessageID: "msg-1"},
	)

	s, _ = apply(t, r, s, EvUploadFailed{MessageID: "msg-1", Err: common.ErrGatewayExhausted})
	require.Equal(t, StepReviewing, s.Step)
	require.ErrorIs(t, s.Err, common.ErrGatewayExhausted)
	require.NotEmpty(t, s.PackageBytes)
}

func TestCreateFlow_NoUploadBeforeTagWrite(t *testing.T) {
	r := testReducer()
	s := NewState(ModeCreate)
	s, cmds := apply(t, r, s,
		EvSessionStarted{},
		EvTokenScanned{Serial: "04A1B2C3"},
		EvRecordingStarted{},
		EvRecordingStopped{Audio: []byte{1}, DurationSeconds: 1, Transcript: "x"},
		EvSaveRequested{},
		EvEncrypted{MessageID: "msg-1", PackageBytes: []byte("pkg"), ContentAddress: "addr-1"},
	)
	_ = s
	for _, c := range cmds {
		_, isUpload := c.(CmdUpload)
		require.False(t, isUpload, "upload must not be issued before the tag write succeeds")
	}
}

func TestCreateFlow_EmptySerialRejected(t *testing.T) {
	r := testReducer()
	s := NewState(ModeCreate)
	s, _ = apply(t, r, s, EvSessionStarted{}, EvTokenScanned{Serial: ""})
	require.ErrorIs(t, s.Err, common.ErrMissingPhysicalKey)
	require.Empty(t, s.TokenSerial)
}

func TestCreateFlow_RecordingWithoutSerialRejected(t *testing.T) {
	r := testReducer()
	s := NewState(ModeCreate)
	s, _ = apply(t, r, s, EvSessionStarted{}, EvRecordingStarted{})
	require.Equal(t, StepAwaitingToken, s.Step)
	require.ErrorIs(t, s.Err, common.ErrMissingPhysicalKey)
}

func TestCreateFlow_StaleEventsDropped(t *testing.T) {
	r := testReducer()
	s := NewState(ModeCreate)
	s, _ = apply(t, r, s,
		EvSessionStarted{},
		EvTokenScanned{Serial: "04A1B2C3"},
		EvRecordingStarted{},
		EvRecordingStopped{Audio: []byte{1}, DurationSeconds: 1, Transcript: "x"},
		EvSaveRequested{},
	)

	// a result computed for some other message id must be ignored
	next, cmds := r.Reduce(s, EvEncrypted{MessageID: "other", PackageBytes: []byte("pkg"), ContentAddress: "a"})
	require.Equal(t, s, next)
	require.Empty(t, cmds)

	// a late tag-written for the wrong step is ignored too
	next, cmds = r.Reduce(s, EvTagWritten{MessageID: "other"})
	require.Equal(t, s, next)
	require.Empty(t, cmds)
}

func TestAutoDecryptGuard_AllOrderings(t *testing.T) {
	events := map[string]Event{
		"started": EvSessionStarted{MessageID: "msg-1", ContentAddress: "addr-1"},
		"scanned": EvTokenScanned{Serial: "04A1B2C3"},
		"ready":   EvGatewayReady{},
	}

	perms := [][]string{
		{"started", "scanned", "ready"},
		{"started", "ready", "scanned"},
		{"scanned", "started", "ready"},
		{"scanned", "ready", "started"},
		{"ready", "started", "scanned"},
		{"ready", "scanned", "started"},
	}

	for _, order := range perms {
		t.Run(fmt.Sprintf("%v", order), func(t *testing.T) {
			r := testReducer()
			s := NewState(ModeRead)

			var downloads int
			for _, name := range order {
				var cmds []Command
				s, cmds = r.Reduce(s, events[name])
				for _, c := range cmds {
					if _, ok := c.(CmdDownload); ok {
						downloads++
					}
				}
			}

			require.Equal(t, 1, downloads, "exactly one decrypt attempt once all inputs are present")
			require.Equal(t, StepDecrypting, s.Step)

			// extra arrivals must not start a second attempt
			for _, ev := range events {
				var cmds []Command
				s, cmds = r.Reduce(s, ev)
				for _, c := range cmds {
					_, ok := c.(CmdDownload)
					require.False(t, ok, "no duplicate download while one is in flight")
				}
			}
		})
	}
}

func TestReadFlow_HappyPath(t *testing.T) {
	r := testReducer()
	s := NewState(ModeRead)
	s, cmds := apply(t, r, s,
		EvSessionStarted{MessageID: "msg-1", ContentAddress: "addr-1"},
		EvGatewayReady{},
		EvTokenScanned{Serial: "04A1B2C3"},
	)
	require.Equal(t, StepDecrypting, s.Step)
	require.Len(t, cmds, 1)

	s, cmds = apply(t, r, s, EvPackageDownloaded{MessageID: "msg-1", Data: []byte("bytes")})
	require.Len(t, cmds, 1)
	dec, ok := cmds[0].(CmdDecrypt)
	require.True(t, ok)
	require.Equal(t, "04A1B2C3", dec.Serial)

	s, _ = apply(t, r, s, EvPackageDecrypted{MessageID: "msg-1", Audio: []byte{9}, Transcript: "hello", DurationSeconds: 3})
	require.Equal(t, StepPlaying, s.Step)
	require.Equal(t, "hello", s.DecryptedTranscript)
}

func TestReadFlow_DecryptionFailedThenRescan(t *testing.T) {
	r := testReducer()
	s := NewState(ModeRead)
	s, _ = apply(t, r, s,
		EvSessionStarted{MessageID: "msg-1", ContentAddress: "addr-1"},
		EvGatewayReady{},
		EvTokenScanned{Serial: "FFFFFFFF"},
		EvDecryptionFailed{MessageID: "msg-1", Err: common.ErrDecryptionFailure},
	)
	require.Equal(t, StepFailed, s.Step)
	require.ErrorIs(t, s.Err, common.ErrDecryptionFailure)

	// a fresh scan retries the guard from the failed state
	s, cmds := apply(t, r, s, EvTokenScanned{Serial: "04A1B2C3"})
	require.Equal(t, StepDecrypting, s.Step)
	require.Len(t, cmds, 1)
	_, ok := cmds[0].(CmdDownload)
	require.True(t, ok)
}

func TestReadFlow_SameLocatorReusesSerial(t *testing.T) {
	r := testReducer()
	s := NewState(ModeRead)
	current := "addr=addr-1&id=msg-1&v=1"
	s, cmds := apply(t, r, s,
		EvSessionStarted{MessageID: "msg-1", ContentAddress: "addr-1"},
		EvGatewayReady{},
		EvTokenScanned{Serial: "04A1B2C3", Locator: current},
	)
	require.Equal(t, "04A1B2C3", s.TokenSerial)
	require.Equal(t, StepDecrypting, s.Step)
	for _, c := range cmds {
		_, isNav := c.(CmdNavigate)
		require.False(t, isNav, "same locator must not navigate")
	}
}

func TestReadFlow_DifferentLocatorNavigatesViaRelay(t *testing.T) {
	r := testReducer()
	s := NewState(ModeRead)
	s, _ = apply(t, r, s,
		EvSessionStarted{MessageID: "msg-1", ContentAddress: "addr-1"},
		EvGatewayReady{},
	)

	other := "addr=addr-2&id=msg-2&v=1"
	s, cmds := apply(t, r, s, EvTokenScanned{Serial: "04A1B2C3", Locator: other})

	require.Empty(t, s.TokenSerial, "serial must travel via the relay, not in-memory state")
	require.Len(t, cmds, 2)
	stash, ok := cmds[0].(CmdStashSerial)
	require.True(t, ok)
	require.Equal(t, "04A1B2C3", stash.Serial)
	require.Equal(t, "msg-2", stash.Bound.MessageID)
	nav, ok := cmds[1].(CmdNavigate)
	require.True(t, ok)
	require.Equal(t, "msg-2", nav.Target.MessageID)
}

func TestPlayerClosed_ScrubsEverything(t *testing.T) {
	r := testReducer()
	s := NewState(ModeRead)
	s, _ = apply(t, r, s,
		EvSessionStarted{MessageID: "msg-1", ContentAddress: "addr-1"},
		EvGatewayReady{},
		EvTokenScanned{Serial: "04A1B2C3"},
		EvPackageDownloaded{MessageID: "msg-1", Data: []byte("bytes")},
		EvPackageDecrypted{MessageID: "msg-1", Audio: []byte{9}, Transcript: "hello", DurationSeconds: 3},
	)
	require.Equal(t, StepPlaying, s.Step)

	s, cmds := apply(t, r, s, EvPlayerClosed{})
	require.Equal(t, ModeCreate, s.Mode)
	require.Equal(t, StepIdle, s.Step)
	require.Empty(t, s.TokenSerial)
	require.Nil(t, s.DecryptedAudio)
	require.Empty(t, s.DecryptedTranscript)
	require.Empty(t, s.MessageID)
	require.Len(t, cmds, 1)
	_, ok := cmds[0].(CmdRevokeAudio)
	require.True(t, ok)
}

func TestChangedKeys(t *testing.T) {
	old := NewState(ModeCreate)
	next := old
	next.Step = StepAwaitingToken
	next.Status = "x"

	keys := ChangedKeys(old, next)
	require.Equal(t, []string{"step", "status"}, keys)

	require.Empty(t, ChangedKeys(old, old))
}
