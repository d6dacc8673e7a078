package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/whispertag/whispertag/internal/capture"
	"github.com/whispertag/whispertag/internal/common"
	"github.com/whispertag/whispertag/internal/cryptox"
	"github.com/whispertag/whispertag/internal/gateway"
	"github.com/whispertag/whispertag/internal/keyderive"
	"github.com/whispertag/whispertag/internal/locator"
	"github.com/whispertag/whispertag/internal/logging"
	"github.com/whispertag/whispertag/internal/nfc"
	"github.com/whispertag/whispertag/internal/pack"
	"github.com/whispertag/whispertag/internal/relay"
)

// Subscriber receives every published state change: the full new state plus
// the list of keys that changed. Subscribers are read-only consumers.
type Subscriber func(state State, changed []string)

// Hooks are the shell-side callbacks for commands the core cannot perform
// itself.
type Hooks struct {
	// Navigate loads a different message, discarding this machine.
	Navigate func(target locator.Locator)
	// RevokeAudio releases playback handles derived from decrypted audio.
	RevokeAudio func()
}

// Machine owns the session state. All mutation goes through Apply, which runs
// the reducer under a lock, publishes the diff, and then executes the
// returned commands. Command results re-enter through Apply as events, so the
// reducer never runs concurrently with itself.
type Machine struct {
	mu      sync.Mutex
	state   State
	reducer Reducer
	subs    []Subscriber

	gw           gateway.Gateway
	writer       nfc.Writer
	recorder     capture.Recorder
	keyRelay     *relay.Relay
	hooks        Hooks
	writeTimeout time.Duration
	log          logging.Logger
}

// Config wires a Machine's collaborators.
type Config struct {
	Mode         Mode
	Gateway      gateway.Gateway
	Writer       nfc.Writer
	Recorder     capture.Recorder
	Relay        *relay.Relay
	Hooks        Hooks
	WriteTimeout time.Duration
	Logger       logging.Logger
}

func NewMachine(cfg Config) *Machine {
	log := cfg.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Machine{
		state:        NewState(cfg.Mode),
		reducer:      NewReducer(),
		gw:           cfg.Gateway,
		writer:       cfg.Writer,
		recorder:     cfg.Recorder,
		keyRelay:     cfg.Relay,
		hooks:        cfg.Hooks,
		writeTimeout: cfg.WriteTimeout,
		log:          log.With("component", "session"),
	}
}

// Subscribe registers a read-only state listener. The current state is
// delivered immediately so late subscribers do not miss the initial view.
func (m *Machine) Subscribe(sub Subscriber) {
	m.mu.Lock()
	m.subs = append(m.subs, sub)
	state := m.state
	m.mu.Unlock()
	sub(state, nil)
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start begins the flow. In read mode it also attempts a relay restore, so a
// serial handed across the navigation is consumed before it expires.
func (m *Machine) Start(ctx context.Context, loc *locator.Locator) {
	ev := EvSessionStarted{}
	if loc != nil {
		ev.MessageID = loc.MessageID
		ev.ContentAddress = loc.ContentAddress
	}
	m.Apply(ctx, ev)

	if m.State().Mode == ModeRead && loc != nil && m.keyRelay != nil {
		serial, err := m.keyRelay.TryRestore(ctx, *loc)
		if err == nil {
			m.log.Debug(ctx, "physical key restored from relay")
			m.Apply(ctx, EvTokenScanned{Serial: serial})
		} else if !errors.Is(err, common.ErrMissingPhysicalKey) {
			m.log.Warn(ctx, "relay restore rejected", "error", err)
		}
	}
}

// Run consumes the scanner stream until ctx ends or the stream closes.
func (m *Machine) Run(ctx context.Context, scanner nfc.Scanner) {
	for {
		select {
		case <-ctx.Done():
			return
		case scan, ok := <-scanner.Scans():
			if !ok {
				return
			}
			m.Apply(ctx, EvTokenScanned{Serial: scan.Serial, Locator: scan.Locator})
		}
	}
}

// StartRecording starts the capture collaborator and records the transition.
func (m *Machine) StartRecording(ctx context.Context) error {
	if err := m.recorder.Start(ctx); err != nil {
		return fmt.Errorf("starting capture: %w", err)
	}
	m.Apply(ctx, EvRecordingStarted{})
	return nil
}

// StopRecording stops the capture and feeds the result into the machine.
func (m *Machine) StopRecording(ctx context.Context) error {
	rec, err := m.recorder.Stop(ctx)
	if err != nil {
		return fmt.Errorf("stopping capture: %w", err)
	}
	m.Apply(ctx, EvRecordingStopped{
		Audio:           rec.Audio,
		DurationSeconds: rec.DurationSeconds,
		Transcript:      rec.Transcript,
	})
	return nil
}

// Save asks the machine to publish the reviewed recording.
func (m *Machine) Save(ctx context.Context) {
	m.Apply(ctx, EvSaveRequested{})
}

// Close tears a read session down.
func (m *Machine) Close(ctx context.Context) {
	m.Apply(ctx, EvPlayerClosed{})
}

// Apply is the single mutation entry point. It reduces the event, publishes
// the full new state plus changed keys, and executes resulting commands on
// background goroutines whose outcomes re-enter as events.
func (m *Machine) Apply(ctx context.Context, ev Event) {
	m.mu.Lock()
	old := m.state
	next, cmds := m.reducer.Reduce(old, ev)
	m.state = next
	subs := make([]Subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	changed := ChangedKeys(old, next)
	if len(changed) > 0 {
		m.log.Debug(ctx, "state changed", "event", ev.eventName(), "step", string(next.Step), "changed", changed)
		for _, sub := range subs {
			sub(next, changed)
		}
	}

	if len(cmds) > 0 {
		// One goroutine per batch keeps intra-batch order (a serial is
		// stashed before the navigation that consumes it fires).
		go func() {
			for _, cmd := range cmds {
				m.execute(ctx, cmd, old)
			}
		}()
	}
}

func (m *Machine) execute(ctx context.Context, cmd Command, prev State) {
	switch c := cmd.(type) {

	case CmdEncrypt:
		m.runEncrypt(ctx, c)

	case CmdWriteTag:
		err := nfc.WriteWithTimeout(ctx, m.writer, c.LocatorBytes, m.writeTimeout)
		if err != nil {
			m.log.Warn(ctx, "tag write failed", "error", err)
			m.Apply(ctx, EvTagWriteFailed{MessageID: c.MessageID, Err: err})
			return
		}
		m.Apply(ctx, EvTagWritten{MessageID: c.MessageID})

	case CmdUpload:
		addr, err := m.gw.Upload(ctx, c.Data, c.MessageID)
		if err != nil {
			m.log.Error(ctx, "upload failed", "error", err)
			m.Apply(ctx, EvUploadFailed{MessageID: c.MessageID, Err: err})
			return
		}
		m.Apply(ctx, EvUploaded{MessageID: c.MessageID, ContentAddress: addr})

	case CmdDownload:
		data, err := m.gw.Download(ctx, c.ContentAddress)
		if err != nil {
			m.log.Error(ctx, "download failed", "error", err)
			m.Apply(ctx, EvDownloadFailed{MessageID: c.MessageID, Err: err})
			return
		}
		m.Apply(ctx, EvPackageDownloaded{MessageID: c.MessageID, Data: data})

	case CmdDecrypt:
		m.runDecrypt(ctx, c)

	case CmdStashSerial:
		if m.keyRelay == nil {
			return
		}
		if err := m.keyRelay.Stash(ctx, c.Serial, c.Bound); err != nil {
			m.log.Error(ctx, "failed to stash physical key", "error", err)
		}

	case CmdNavigate:
		if m.hooks.Navigate != nil {
			m.hooks.Navigate(c.Target)
		}

	case CmdRevokeAudio:
		if m.hooks.RevokeAudio != nil {
			m.hooks.RevokeAudio()
		}
		// Zero the buffers the scrubbed state dropped.
		common.WipeByteArray(prev.DecryptedAudio)
		common.WipeByteArray(prev.AudioBuffer)
	}
}

// runEncrypt derives the key, encrypts both payloads, builds the package and
// computes its content address locally, so the tag can be written before the
// upload happens.
func (m *Machine) runEncrypt(ctx context.Context, c CmdEncrypt) {
	key, err := keyderive.Derive(c.Serial, c.Timestamp)
	if err != nil {
		m.Apply(ctx, EvEncryptFailed{MessageID: c.MessageID, Err: err})
		return
	}
	defer common.WipeByteArray(key)

	encAudio, err := cryptox.Encrypt(c.Audio, key)
	if err != nil {
		m.Apply(ctx, EvEncryptFailed{MessageID: c.MessageID, Err: err})
		return
	}
	encTranscript, err := cryptox.EncryptToString(c.Transcript, key)
	if err != nil {
		m.Apply(ctx, EvEncryptFailed{MessageID: c.MessageID, Err: err})
		return
	}

	data, err := pack.Pack(&pack.MessagePackage{
		MessageID:           c.MessageID,
		Timestamp:           c.Timestamp,
		EncryptedAudio:      encAudio,
		EncryptedTranscript: encTranscript,
		Metadata: pack.Metadata{
			DurationSeconds: c.DurationSeconds,
			CreatedAt:       c.Timestamp,
			Version:         pack.Version,
		},
	})
	if err != nil {
		m.Apply(ctx, EvEncryptFailed{MessageID: c.MessageID, Err: err})
		return
	}

	m.Apply(ctx, EvEncrypted{
		MessageID:      c.MessageID,
		PackageBytes:   data,
		ContentAddress: gateway.ContentAddress(data),
	})
}

// runDecrypt unpacks downloaded bytes, verifies the id, derives the key from
// the scanned serial and the package's own timestamp, and decrypts.
func (m *Machine) runDecrypt(ctx context.Context, c CmdDecrypt) {
	pkg, err := pack.Unpack(c.Data)
	if err != nil {
		m.Apply(ctx, EvDecryptionFailed{MessageID: c.MessageID, Err: err})
		return
	}
	if pkg.MessageID != c.MessageID {
		m.Apply(ctx, EvDecryptionFailed{MessageID: c.MessageID, Err: common.ErrPackageMismatch})
		return
	}

	key, err := keyderive.Derive(c.Serial, pkg.Timestamp)
	if err != nil {
		m.Apply(ctx, EvDecryptionFailed{MessageID: c.MessageID, Err: err})
		return
	}
	defer common.WipeByteArray(key)

	audio, err := cryptox.Decrypt(pkg.EncryptedAudio, key)
	if err != nil {
		m.Apply(ctx, EvDecryptionFailed{MessageID: c.MessageID, Err: err})
		return
	}
	transcript, err := cryptox.DecryptFromString(pkg.EncryptedTranscript, key)
	if err != nil {
		m.Apply(ctx, EvDecryptionFailed{MessageID: c.MessageID, Err: err})
		return
	}

	m.Apply(ctx, EvPackageDecrypted{
		MessageID:       c.MessageID,
		Audio:           audio,
		Transcript:      transcript,
		DurationSeconds: pkg.Metadata.DurationSeconds,
	})
}
