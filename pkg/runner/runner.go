// Package runner executes one observed child process per run: it drains the
// child's stdout and stderr concurrently, classifies narration lines into
// events, and appends those events to the ledger.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"msgtrack/pkg/classify"
	"msgtrack/pkg/ledger"
)

// lineBuffer is the capacity of the channel between the stream readers and
// the sink.
const lineBuffer = 256

// Appender persists one event. *ledger.Ledger implements it.
type Appender interface {
	Append(e ledger.Event) error
}

// Classifier maps a stdout line to at most one event. *classify.Classifier
// implements it.
type Classifier interface {
	Match(line string, in classify.Input) (string, *ledger.Event)
}

// Result describes a finished run.
type Result struct {
	RunID    string
	PID      int // 0 when the child never started
	ExitCode int // -1 when the child never started or was killed
	Duration time.Duration
	Events   int // events appended to the ledger
}

// Runner runs child processes one at a time and records their narration.
type Runner struct {
	ledger     Appender
	classifier Classifier
	logger     *slog.Logger
	dir        string
	env        []string
	now        func() time.Time
	wrapReader func(stream, io.Reader) io.Reader
	mu         sync.Mutex // serializes runs
}

// New creates a Runner writing through l.
func New(l Appender, c Classifier, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		ledger:     l,
		classifier: c,
		logger:     logger,
		now:        time.Now,
	}
}

// SetDir sets the child's working directory. Empty inherits ours.
func (r *Runner) SetDir(dir string) {
	r.dir = dir
}

// SetEnv adds KEY=VALUE pairs to the inherited environment of the child.
func (r *Runner) SetEnv(env []string) {
	r.env = env
}

// Run executes command and reports whether the run succeeded: the child
// started, exited 0, and every event reached the ledger.
func (r *Runner) Run(ctx context.Context, correlationID, command string, args ...string) bool {
	res, err := r.Execute(ctx, correlationID, command, args...)
	return err == nil && res.ExitCode == 0
}

// Execute is Run with details. The returned error is a *SpawnError,
// *StreamReadError, *ledger.PersistenceError or cancellation cause; a child
// exiting non-zero is not an error and shows up in Result.ExitCode.
// Execute never panics; faults become a system error event.
func (r *Runner) Execute(ctx context.Context, correlationID, command string, args ...string) (res *Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res = &Result{RunID: uuid.NewString(), ExitCode: -1}
	log := r.logger.With("correlation_id", correlationID, "run_id", res.RunID)
	start := r.now()
	elapsed := func() float64 { return r.now().Sub(start).Seconds() }

	defer func() {
		if p := recover(); p != nil {
			fault := fmt.Errorf("run fault: %v", p)
			log.Error("run fault", "err", fault)
			err = r.recordFault(correlationID, fault, ledger.Seconds(elapsed()), res)
		}
		res.Duration = r.now().Sub(start)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.Dir = r.dir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return res, r.spawnFailed(log, correlationID, command, fmt.Errorf("stdout pipe: %w", err), res)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return res, r.spawnFailed(log, correlationID, command, fmt.Errorf("stderr pipe: %w", err), res)
	}
	if err := cmd.Start(); err != nil {
		return res, r.spawnFailed(log, correlationID, command, err, res)
	}
	res.PID = cmd.Process.Pid
	log.Info("child started", "pid", res.PID, "command", command, "args", args)

	lines := make(chan outputLine, lineBuffer)
	var g errgroup.Group
	for _, src := range []struct {
		s stream
		r io.Reader
	}{{streamStdout, stdout}, {streamStderr, stderr}} {
		rd := src.r
		if r.wrapReader != nil {
			rd = r.wrapReader(src.s, rd)
		}
		g.Go(func() error {
			if err := drainLines(runCtx, rd, src.s, elapsed, lines); err != nil {
				cancel()
				return err
			}
			return nil
		})
	}
	var readErr error
	drained := make(chan struct{})
	go func() {
		readErr = g.Wait()
		close(lines)
		close(drained)
	}()

	// The child is always reaped, even when a fault unwinds the run early.
	waited := false
	defer func() {
		if waited {
			return
		}
		cancel()
		<-drained
		_ = cmd.Wait()
		if cmd.ProcessState != nil {
			res.ExitCode = cmd.ProcessState.ExitCode()
		}
	}()

	var fatal error
	for ln := range lines {
		if fatal != nil {
			log.Warn("line not recorded after fatal error", "stream", ln.stream.String(), "line", ln.text)
			continue
		}
		if err := r.handleLine(log, correlationID, ln, res); err != nil {
			log.Error("aborting run", "err", err)
			fatal = err
			cancel()
		}
	}

	<-drained
	if readErr != nil && fatal == nil {
		log.Error("stream read failed", "err", readErr)
		fatal = r.recordFault(correlationID, readErr, ledger.Seconds(elapsed()), res)
	}

	waited = true
	waitErr := cmd.Wait()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	log.Info("child exited", "exit_code", res.ExitCode, "duration_seconds", elapsed(), "events", res.Events, "err", waitErr)

	if fatal == nil && ctx.Err() != nil {
		cause := fmt.Errorf("run cancelled: %w", context.Cause(ctx))
		fatal = r.recordFault(correlationID, cause, ledger.Seconds(elapsed()), res)
	}
	return res, fatal
}

// handleLine turns one line into at most one ledger append. Only append
// failures are returned; bad lines become events.
func (r *Runner) handleLine(log *slog.Logger, correlationID string, ln outputLine, res *Result) error {
	blank := strings.TrimSpace(ln.text) == ""

	if ln.stream == streamStderr {
		if blank {
			return nil
		}
		log.Error("child error", "line", ln.text)
		return r.append(log, ledger.SystemError(correlationID, ln.text, ln.text, nil), res)
	}

	log.Debug("child output", "line", ln.text)
	if blank {
		return nil
	}

	rule, e := r.classifier.Match(ln.text, classify.Input{ElapsedSeconds: ln.elapsed, CorrelationID: correlationID})
	if e == nil {
		if rule != "" {
			log.Info("marker seen", "rule", rule)
		}
		return nil
	}
	log.Info("event classified", "rule", rule, "kind", e.Kind, "subject_id", e.SubjectID,
		"status", e.Status, "elapsed_seconds", ln.elapsed)
	return r.append(log, *e, res)
}

func (r *Runner) append(log *slog.Logger, e ledger.Event, res *Result) error {
	if err := r.ledger.Append(e); err != nil {
		log.Error("event not persisted", "err", err, "kind", e.Kind, "subject_id", e.SubjectID,
			"content", e.Content, "error_detail", e.ErrorDetail)
		return err
	}
	res.Events++
	return nil
}

func (r *Runner) spawnFailed(log *slog.Logger, correlationID, command string, cause error, res *Result) error {
	spawnErr := &SpawnError{Command: command, Err: cause}
	log.Error("spawn failed", "err", spawnErr)
	return r.recordFault(correlationID, spawnErr, ledger.Seconds(0), res)
}

// recordFault appends a system error event describing cause and returns
// cause, joined with the append failure if the event could not be written.
func (r *Runner) recordFault(correlationID string, cause error, elapsed *float64, res *Result) error {
	e := ledger.SystemError(correlationID, cause.Error(), cause.Error(), elapsed)
	if err := r.ledger.Append(e); err != nil {
		r.logger.Error("event not persisted", "correlation_id", correlationID, "err", err, "content", e.Content)
		return errors.Join(cause, err)
	}
	res.Events++
	return cause
}
