package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/whispertag/whispertag/internal/capture"
	"github.com/whispertag/whispertag/internal/locator"
	"github.com/whispertag/whispertag/internal/nfc"
	"github.com/whispertag/whispertag/internal/session"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// runREPL starts a simple read–eval–print loop. It reads a line, parses the
// first token as the command, and dispatches. The loop exits on scanner EOF
// or when the user types "exit" or "quit".
//
// Commands:
//
//	create             - start a new create session
//	read <locator>     - open an existing message
//	scan [locator]     - simulate a tag scan (serial read without echo)
//	record <file>      - record audio from a file
//	transcript <text>  - set the transcript for the pending recording
//	stop               - finish recording
//	save               - encrypt, bind to tag, publish
//	close              - close the player, scrub session state
//	status             - print the current state
//	exit | quit        - leave the program
func runREPL(ctx context.Context, a *App, scanner *bufio.Scanner) {
	for {
		printlnFn("wt> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "help":
			printlnFn("Available commands: create, read, scan, record, transcript, stop, save, close, status, exit")

		case "create":
			a.startMachine(ctx, session.ModeCreate, nil)

		case "read":
			if len(parts) < 2 {
				printlnFn("usage: read <locator>")
				continue
			}
			loc, err := locator.Decode(parts[1])
			if err != nil {
				printlnFn(fmt.Sprintf("bad locator: %v", err))
				continue
			}
			a.startMachine(ctx, session.ModeRead, &loc)

		case "scan":
			serial, err := GetSerial(os.Stdout)
			if err != nil {
				printlnFn(fmt.Sprintf("error: %v", err))
				continue
			}
			scan := nfc.Scan{Serial: serial}
			if len(parts) > 1 {
				scan.Locator = parts[1]
			}
			a.machine.Apply(ctx, session.EvTokenScanned{Serial: scan.Serial, Locator: scan.Locator})

		case "record":
			if len(parts) < 2 {
				printlnFn("usage: record <file>")
				continue
			}
			data, err := os.ReadFile(parts[1])
			if err != nil {
				printlnFn(fmt.Sprintf("error: %v", err))
				continue
			}
			a.recorder.Recording = capture.Recording{Audio: data, DurationSeconds: float64(len(data)) / 16000}
			if err := a.machine.StartRecording(ctx); err != nil {
				printlnFn(fmt.Sprintf("error: %v", err))
			}

		case "transcript":
			a.recorder.Recording.Transcript = strings.Join(parts[1:], " ")

		case "stop":
			if err := a.machine.StopRecording(ctx); err != nil {
				printlnFn(fmt.Sprintf("error: %v", err))
			}

		case "save":
			a.machine.Save(ctx)

		case "close":
			a.machine.Close(ctx)

		case "status":
			s := a.machine.State()
			printlnFn(fmt.Sprintf("mode=%s step=%s status=%q", s.Mode, s.Step, s.Status))

		case "exit", "quit":
			return

		default:
			printlnFn(fmt.Sprintf("unknown command: %s", parts[0]))
		}
	}
}
