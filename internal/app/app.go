// Package app dispatches CLI commands: one process owns the assistant
// loop and its unix socket, every other invocation forwards to it.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/hmori/siriusd/internal/assistant"
	"github.com/hmori/siriusd/internal/audio"
	"github.com/hmori/siriusd/internal/cli"
	"github.com/hmori/siriusd/internal/config"
	"github.com/hmori/siriusd/internal/doctor"
	"github.com/hmori/siriusd/internal/events"
	"github.com/hmori/siriusd/internal/expression"
	"github.com/hmori/siriusd/internal/ipc"
	"github.com/hmori/siriusd/internal/llm"
	"github.com/hmori/siriusd/internal/logging"
	"github.com/hmori/siriusd/internal/recorder"
	"github.com/hmori/siriusd/internal/speech"
	"github.com/hmori/siriusd/internal/stt"
	"github.com/hmori/siriusd/internal/version"
	"github.com/hmori/siriusd/internal/voicevox"
	"github.com/hmori/siriusd/internal/wakeword"
)

// busCapacity bounds the pipeline event queue; publishers never block.
const busCapacity = 64

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("siriusd"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("siriusd"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.Request{Command: "stop"})
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.Request{Command: "cancel"})
	case cli.CommandSay:
		return r.commandSay(ctx, cfgLoaded.Config, logger, parsed.Text)
	case cli.CommandAsk:
		return r.commandAsk(ctx, cfgLoaded.Config, logger, parsed.Text)
	case cli.CommandListen:
		return r.commandListen(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "status"})
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		if resp.Message != "" {
			fmt.Fprintln(r.Stdout, resp.Message)
		}
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no running siriusd session\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandSay forwards to the running daemon when there is one, otherwise
// speaks the text in this process.
func (r Runner) commandSay(ctx context.Context, cfg config.Config, logger *slog.Logger, text string) int {
	if code, forwarded := r.tryForwardText(ctx, "say", text); forwarded {
		return code
	}
	return r.speakOnce(ctx, cfg, logger, text)
}

// commandAsk sends user text through the reply model and speaks the
// answer, via the daemon when one is running.
func (r Runner) commandAsk(ctx context.Context, cfg config.Config, logger *slog.Logger, text string) int {
	if code, forwarded := r.tryForwardText(ctx, "ask", text); forwarded {
		return code
	}

	reply := llm.NewClient(cfg.LLM, logger).Reply(ctx, text)
	fmt.Fprintln(r.Stdout, reply)
	return r.speakOnce(ctx, cfg, logger, reply)
}

func (r Runner) tryForwardText(ctx context.Context, command string, text string) (int, bool) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return 0, false
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: command, Text: text})
	if !handled {
		return 0, false
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1, true
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0, true
}

// speakOnce runs a standalone synthesis-and-playback session and waits
// for playback to finish.
func (r Runner) speakOnce(ctx context.Context, cfg config.Config, logger *slog.Logger, text string) int {
	bus := events.NewBus(logger, busCapacity)
	synth := voicevox.NewClient(cfg.Synthesis)
	sink := expression.NewClient(cfg.Expression, logger)
	speaker := speech.NewController(synth, sink, cfg.Lipsync, cfg.Audio, nil, bus, logger)

	speaker.Speak(ctx, text)

	for {
		select {
		case <-ctx.Done():
			speaker.Cancel()
			return 1
		case ev := <-bus.C():
			if done, ok := ev.(events.PlaybackCompleted); ok {
				if done.Cancelled {
					fmt.Fprintln(r.Stdout, "cancelled")
				}
				return 0
			}
		}
	}
}

func (r Runner) commandListen(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: siriusd is already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	bus := events.NewBus(logger, busCapacity)
	whisper := stt.NewClient(cfg.Whisper, logger)
	whisper.Preload(ctx)

	openCapture := func(ctx context.Context) (*audio.Capture, error) {
		selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
		if err != nil {
			return nil, err
		}
		if selection.Warning != "" {
			logger.Warn("device selection fallback", "warning", selection.Warning)
		}
		return audio.StartCapture(ctx, selection.Device, cfg.Audio.FrameSamples)
	}

	detector := wakeword.NewDetector(
		cfg.WakeWord,
		stt.OptionsFromConfig(cfg.WakeTranscribe),
		whisper,
		func(ctx context.Context) (wakeword.FrameSource, error) { return openCapture(ctx) },
		bus,
		logger,
	)
	rec := recorder.NewRecorder(
		cfg.Recorder,
		stt.OptionsFromConfig(cfg.UtteranceTranscribe),
		whisper,
		func(ctx context.Context) (recorder.FrameSource, error) { return openCapture(ctx) },
		bus,
		logger,
		cfg.Debug.EnableAudioDump,
	)

	synth := voicevox.NewClient(cfg.Synthesis)
	sink := expression.NewClient(cfg.Expression, logger)
	speaker := speech.NewController(synth, sink, cfg.Lipsync, cfg.Audio, nil, bus, logger)
	replier := llm.NewClient(cfg.LLM, logger)

	asst := assistant.New(detector, rec, replier, speaker, bus, logger)

	// Restore whatever face the expression server was showing before the
	// session took it over.
	savedPattern, patternErr := sink.Current(ctx)
	if patternErr != nil {
		logger.Warn("read current mouth pattern failed", "error", patternErr.Error())
	}
	defer func() {
		if patternErr == nil {
			if err := sink.Set(savedPattern); err != nil {
				logger.Warn("restore mouth pattern failed", "error", err.Error())
			}
		}
	}()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(runCtx, listener, ipcHandler(asst, replier, cancelRun))
	}()

	runErr := asst.Run(runCtx)
	cancelRun()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: %v\n", runErr)
		return 1
	}

	fmt.Fprintln(r.Stdout, "stopped")
	return 0
}

// ipcHandler maps socket commands onto the running assistant. Handlers
// run on per-connection goroutines; ask blocks its connection on reply
// generation without stalling the loop.
func ipcHandler(asst *assistant.Assistant, replier assistant.Replier, stop context.CancelFunc) ipc.Handler {
	return ipc.HandlerFunc(func(ctx context.Context, req ipc.Request) ipc.Response {
		switch req.Command {
		case "status":
			snapshot := asst.Snapshot()
			payload, err := json.Marshal(snapshot)
			if err != nil {
				return ipc.Response{OK: false, Error: fmt.Sprintf("encode status: %v", err)}
			}
			return ipc.Response{OK: true, State: string(snapshot.State), Message: string(payload)}

		case "stop":
			stop()
			return ipc.Response{OK: true, Message: "stopping"}

		case "cancel":
			if asst.CancelSpeech() {
				return ipc.Response{OK: true, State: string(asst.State()), Message: "speech cancelled"}
			}
			return ipc.Response{OK: true, State: string(asst.State()), Message: "nothing speaking"}

		case "say":
			if strings.TrimSpace(req.Text) == "" {
				return ipc.Response{OK: false, Error: "say requires text"}
			}
			asst.Say(req.Text)
			return ipc.Response{OK: true, State: string(asst.State()), Message: "queued"}

		case "ask":
			if strings.TrimSpace(req.Text) == "" {
				return ipc.Response{OK: false, Error: "ask requires text"}
			}
			// Reply generation can take seconds; answer the socket now
			// and queue the spoken reply when it lands.
			go func(text string) {
				asst.Say(replier.Reply(ctx, text))
			}(req.Text)
			return ipc.Response{OK: true, State: string(asst.State()), Message: "queued"}

		default:
			return ipc.Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Command)}
		}
	})
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
