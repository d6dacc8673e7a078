// Package cli is the interactive shell around the session machine. It plays
// the role the page/UI layer plays elsewhere: feeding events in, rendering
// published state changes, and owning process-level wiring.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/whispertag/whispertag/internal/capture"
	"github.com/whispertag/whispertag/internal/client/config"
	"github.com/whispertag/whispertag/internal/gateway"
	"github.com/whispertag/whispertag/internal/locator"
	"github.com/whispertag/whispertag/internal/logging"
	"github.com/whispertag/whispertag/internal/nfc"
	"github.com/whispertag/whispertag/internal/relay"
	"github.com/whispertag/whispertag/internal/session"

	_ "modernc.org/sqlite"
)

type App struct {
	config   *config.Config
	log      logging.Logger
	gw       gateway.Gateway
	keyRelay *relay.Relay
	tags     *nfc.FakeTransport
	recorder *capture.FakeRecorder

	machine *session.Machine
	closeFn func() error
}

// NewApp wires the collaborators from config. The tag transport and recorder
// are the simulated ones; real hardware plugs in behind the same interfaces.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.NewTextLogger(os.Stderr, slog.LevelInfo)

	db, err := relay.OpenDatabase(ctx, c.RelayDBPath)
	if err != nil {
		return nil, fmt.Errorf("opening relay database: %w", err)
	}

	var gw gateway.Gateway
	if c.S3Bucket != "" {
		gw, err = gateway.NewS3Gateway(ctx, gateway.S3Config{
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
		}, log)
		if err != nil {
			db.Close()
			return nil, err
		}
	} else {
		gw = gateway.NewHTTPGateway(c.GatewayEndpoints, log)
	}

	return &App{
		config:   c,
		log:      log,
		gw:       gw,
		keyRelay: relay.New(relay.NewSQLiteStore(db), c.RelayTTL),
		tags:     nfc.NewFakeTransport(),
		recorder: &capture.FakeRecorder{},
		closeFn:  db.Close,
	}, nil
}

func (a *App) Close() error {
	if a.closeFn != nil {
		return a.closeFn()
	}
	return nil
}

// startMachine builds a fresh machine for one "page load". loc is nil for
// create mode.
func (a *App) startMachine(ctx context.Context, mode session.Mode, loc *locator.Locator) {
	a.machine = session.NewMachine(session.Config{
		Mode:         mode,
		Gateway:      a.gw,
		Writer:       a.tags,
		Recorder:     a.recorder,
		Relay:        a.keyRelay,
		WriteTimeout: a.config.WriteTimeout,
		Logger:       a.log,
		Hooks: session.Hooks{
			Navigate: func(target locator.Locator) {
				// A navigation discards the current machine; the relay
				// carries the serial into the next one.
				a.startMachine(ctx, session.ModeRead, &target)
			},
			RevokeAudio: func() {},
		},
	})

	a.machine.Subscribe(func(s session.State, changed []string) {
		if s.Status != "" {
			fmt.Printf("  [%s/%s] %s\n", s.Mode, s.Step, s.Status)
		}
		if s.Step == session.StepPublished {
			loc := locator.Locator{MessageID: s.MessageID, ContentAddress: s.ContentAddress}
			fmt.Printf("  locator: %s\n", loc.Encode())
		}
		if s.Step == session.StepPlaying {
			fmt.Printf("  transcript: %q (%.1fs audio)\n", s.DecryptedTranscript, s.DurationSeconds)
		}
	})

	a.machine.Start(ctx, loc)
	if gwReady := a.gw.Ready(); gwReady {
		a.machine.Apply(ctx, session.EvGatewayReady{})
	}
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.startMachine(ctx, session.ModeCreate, nil)
	runREPL(ctx, a, bufio.NewScanner(os.Stdin))
}
