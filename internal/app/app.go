// Package app dispatches CLI commands and drives the practice attempt
// lifecycle: capture, question navigation, report, and backend submission.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"prepmate/internal/analysis"
	"prepmate/internal/api"
	"prepmate/internal/audio"
	"prepmate/internal/cli"
	"prepmate/internal/config"
	"prepmate/internal/doctor"
	"prepmate/internal/ipc"
	"prepmate/internal/logging"
	"prepmate/internal/models"
	"prepmate/internal/pipeline"
	"prepmate/internal/report"
	"prepmate/internal/speech"
	"prepmate/internal/transcript"
	"prepmate/internal/version"
)

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
		fmt.Fprint(r.Stderr, cli.HelpText("prepmate"))
		return 2
	}

	if parsed.ShowHelp || parsed.Command == cli.CommandHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("prepmate"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Logging.File, cfgLoaded.Config.Logging.Level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		rep := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, rep.String())
		if rep.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandNext:
		return r.forwardOrFail(ctx, ipc.CommandNext)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.CommandCancel)
	case cli.CommandPractice:
		return r.commandPractice(ctx, cfgLoaded.Config, parsed.Resume, logger)
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

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		if resp.Total > 0 {
			fmt.Fprintf(r.Stdout, "%s (question %d/%d)\n", resp.State, resp.Question, resp.Total)
		} else {
			fmt.Fprintln(r.Stdout, resp.State)
		}
		if resp.Interim != "" {
			fmt.Fprintf(r.Stdout, "interim: %s\n", resp.Interim)
		}
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active practice session\n")
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

func (r Runner) commandPractice(ctx context.Context, cfg config.Config, resume bool, logger *slog.Logger) int {
	questions, err := config.LoadQuestions(cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: a practice session is already running; use next, stop, or cancel")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	dataDir := cfg.Transcript.SnapshotDir
	if dataDir == "" {
		dataDir, err = config.ResolveDataDir()
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
	}

	var snapshots transcript.SnapshotStore
	if cfg.Transcript.Autosave {
		snapshots, err = transcript.NewFileSnapshotStore(dataDir)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
	}
	manager := transcript.NewManager(snapshots, logger)

	startIndex := 0
	restored := false
	if resume {
		if restored = manager.Restore(); restored {
			startIndex = resumeIndex(manager.Session(), len(questions))
			fmt.Fprintf(r.Stdout, "resuming interrupted session at question %d/%d\n", startIndex+1, len(questions))
		} else {
			fmt.Fprintln(r.Stdout, "no session to resume; starting fresh")
		}
	}
	if !restored {
		manager.StartSession()
	}

	stack, err := pipeline.New(cfg, manager, logger,
		speech.WithInterimFunc(func(text string) {
			fmt.Fprintf(r.Stdout, "\r  ... %s", text)
		}),
		speech.WithSegmentFunc(func(segment transcript.Segment) {
			fmt.Fprintf(r.Stdout, "\r  %s\n", segment.Text)
		}),
	)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	controller := newPracticeController(logger, stack.Session, manager, questions, r.Stdout, startIndex)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	result := controller.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logPracticeResult(logger, result)

	if result.Cancelled {
		manager.ClearSnapshot()
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}

	analyzer := analysis.New()
	rep := report.Build(result.Session, analyzer)
	fmt.Fprintln(r.Stdout)
	fmt.Fprintln(r.Stdout, rep.Markdown())

	reportPath, err := rep.WriteFile(dataDir)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: write report: %v\n", err)
	} else {
		fmt.Fprintf(r.Stdout, "report written to %s\n", reportPath)
	}

	if cfg.Server.Token != "" {
		if err := r.submit(ctx, cfg, questions, manager); err != nil {
			// Snapshot stays in place so the attempt can be re-submitted.
			fmt.Fprintf(r.Stderr, "error: submit interview: %v\n", err)
			logger.Error("submit interview failed", "error", err.Error())
			return 1
		}
		fmt.Fprintln(r.Stdout, "interview submitted")
	}

	manager.ClearSnapshot()
	return 0
}

// submit pushes the attempt to the backend: create the interview, then
// upload the recorded transcript.
func (r Runner) submit(ctx context.Context, cfg config.Config, questions []string, manager *transcript.Manager) error {
	client := api.New(cfg.Server)

	interview, err := client.CreateInterview(ctx, questions)
	if err != nil {
		return err
	}

	entries := make([]models.TranscriptEntry, 0)
	for _, qt := range manager.AllTranscripts() {
		duration := 0.0
		if n := len(qt.Segments); n > 0 {
			duration = float64(qt.Segments[n-1].EndTime-qt.StartTime) / 1000
		}
		entries = append(entries, models.TranscriptEntry{
			QuestionText:    qt.QuestionText,
			AnswerText:      qt.FullText,
			DurationSeconds: duration,
		})
	}

	_, err = client.UpdateInterview(ctx, interview.ID, api.InterviewUpdate{Transcript: entries})
	return err
}

func logPracticeResult(logger *slog.Logger, result practiceResult) {
	if logger == nil {
		return
	}
	fields := []any{
		"cancelled", result.Cancelled,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"questions_recorded", len(result.Session.Questions),
	}

	if result.Err != nil {
		logger.Error("practice session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("practice session complete", fields...)
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) || isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
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
