// Package supervisor runs one chesscast session: it prepares the runtime
// environment, spawns the primary and one frame consumer, waits on the
// primary and tears everything down exactly once.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/chesscast/internal/consumer"
	"github.com/smazurov/chesscast/internal/events"
	"github.com/smazurov/chesscast/internal/ffmpeg"
	"github.com/smazurov/chesscast/internal/logging"
	"github.com/smazurov/chesscast/internal/process"
	"github.com/smazurov/chesscast/internal/runconfig"
	"github.com/smazurov/chesscast/internal/runenv"
	"github.com/smazurov/chesscast/internal/systemd"
)

// DefaultPrimaryBinary is the chess application producing frames.
const DefaultPrimaryBinary = "ttv-plays-chess"

// Default stop escalation intervals.
const (
	DefaultStopTimeout = 5 * time.Second
	DefaultKillTimeout = 5 * time.Second
)

// consumerExitGrace lets a consumer that saw EOF because the primary just
// exited be attributed to the primary's exit.
const consumerExitGrace = 500 * time.Millisecond

// DefaultRuntimeDir returns the runtime directory used when none is given.
// Concurrent runs must use distinct directories.
func DefaultRuntimeDir() string {
	return filepath.Join(os.TempDir(), "chesscast")
}

// Options configure a Supervisor.
type Options struct {
	Mode         Mode
	RuntimeDir   string
	Credentials  runconfig.Credentials
	StreamTarget runconfig.StreamTarget

	PrimaryBinary string
	PreviewBinary string
	EncoderBinary string

	// StopTimeout is the SIGINT to SIGKILL delay, KillTimeout the wait
	// after SIGKILL.
	StopTimeout    time.Duration
	KillTimeout    time.Duration
	ConsumerPolicy ConsumerPolicy

	// GOOS overrides the platform used to pick the audio capture source.
	GOOS string
	// Frames describes the frame channel encoding; zero means raw RGBA.
	Frames ffmpeg.FrameInput

	Bus      *events.Bus
	Notifier *systemd.Notifier
	Logger   *slog.Logger
}

// Handles are the processes of a run. Consumer is nil until spawned.
type Handles struct {
	Primary  *process.Process
	Consumer *process.Process
}

// Live returns the handles whose process is running.
func (h Handles) Live() []*process.Process {
	var live []*process.Process
	for _, p := range []*process.Process{h.Primary, h.Consumer} {
		if p != nil && p.Alive() {
			live = append(live, p)
		}
	}
	return live
}

// Supervisor owns the runtime environment and the processes of one run.
type Supervisor struct {
	opts     Options
	runID    string
	env      *runenv.Environment
	adapter  consumer.Adapter
	logger   *slog.Logger
	bus      *events.Bus
	notifier *systemd.Notifier

	mu          sync.Mutex
	handles     Handles
	exited      map[string]bool
	stopGuard   func()
	monitorDone chan struct{}

	consumerLost chan struct{}
	closing      chan struct{}

	cleanupOnce sync.Once
	cleanupErr  error
}

// New validates opts and returns a Supervisor for a single run.
func New(opts Options) (*Supervisor, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, opts.Mode)
	}
	policy, err := ParseConsumerPolicy(string(opts.ConsumerPolicy))
	if err != nil {
		return nil, err
	}
	opts.ConsumerPolicy = policy

	if opts.RuntimeDir == "" {
		opts.RuntimeDir = DefaultRuntimeDir()
	}
	if opts.PrimaryBinary == "" {
		opts.PrimaryBinary = DefaultPrimaryBinary
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.KillTimeout <= 0 {
		opts.KillTimeout = DefaultKillTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("supervisor")
	}
	runID := uuid.NewString()

	s := &Supervisor{
		opts:         opts,
		runID:        runID,
		env:          runenv.New(opts.RuntimeDir),
		logger:       logger.With("run_id", runID, "mode", opts.Mode.String()),
		bus:          opts.Bus,
		notifier:     opts.Notifier,
		exited:       make(map[string]bool),
		consumerLost: make(chan struct{}),
		closing:      make(chan struct{}),
	}

	frames := opts.Frames
	if frames.Format == "" {
		frames = ffmpeg.RawRGBA
	}
	switch opts.Mode {
	case ModePreview:
		preview := consumer.NewPreview(opts.PreviewBinary)
		preview.Frames = frames
		s.adapter = preview
	case ModeLiveStream:
		live := consumer.NewLiveStream(opts.EncoderBinary, opts.StreamTarget)
		live.GOOS = opts.GOOS
		live.Frames = frames
		s.adapter = live
	}
	return s, nil
}

// RunID identifies this run in logs and events.
func (s *Supervisor) RunID() string { return s.runID }

// Environment returns the runtime environment of this run.
func (s *Supervisor) Environment() *runenv.Environment { return s.env }

// Handles returns the processes spawned so far.
func (s *Supervisor) Handles() Handles {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles
}

// Run prepares, starts and waits on the run, then cleans up. It returns the
// orchestrator exit status together with the error that decided it.
// Cancelling ctx stops the primary; that is not a failure.
func (s *Supervisor) Run(ctx context.Context) (int, error) {
	defer func() {
		if err := s.Cleanup(); err != nil {
			s.logger.Error("Cleanup finished with errors", "error", err)
		}
	}()

	if err := s.Prepare(ctx); err != nil {
		return ExitCode(0, err), err
	}
	if _, err := s.Start(); err != nil {
		return ExitCode(0, err), err
	}
	code, err := s.Wait(ctx)
	return ExitCode(code, err), err
}

// Prepare creates the runtime directory with its frame channel and writes
// the configuration document. Nothing is spawned when it fails.
func (s *Supervisor) Prepare(ctx context.Context) error {
	if err := s.env.Initialize(); err != nil {
		s.logger.Error("Failed to prepare runtime environment", "error", err)
		return err
	}

	if _, err := runconfig.Generate(s.opts.Credentials, s.env.FramePath(), s.env.ConfigPath()); err != nil {
		s.logger.Error("Failed to generate run configuration", "error", err)
		return err
	}

	stop, err := s.env.Watch(ctx, s.logger, func(path string) {
		s.bus.Publish(events.EnvironmentLostEvent{RunID: s.runID, Path: path})
	})
	if err != nil {
		s.logger.Warn("Runtime directory guard unavailable", "error", err)
	} else {
		s.mu.Lock()
		s.stopGuard = stop
		s.mu.Unlock()
	}

	s.logger.Info("Runtime environment ready",
		"dir", s.env.Dir(), "frame_channel", s.env.FramePath(), "config", s.env.ConfigPath())
	s.bus.Publish(events.RunStartedEvent{RunID: s.runID, Mode: s.opts.Mode.String(), RuntimeDir: s.env.Dir()})
	s.notifier.Status("preparing " + s.opts.Mode.String())
	return nil
}

// Start spawns the primary, passing the configuration path as its only
// argument, and then the consumer for the mode. Neither is waited on.
// The consumer command is resolved first so that a missing stream target
// fails before anything is spawned.
func (s *Supervisor) Start() (Handles, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handles.Primary != nil {
		return s.handles, errors.New("run already started")
	}

	consumerArgs, err := s.adapter.Command(s.env.FramePath())
	if err != nil {
		s.logger.Error("Cannot build consumer command", "consumer", s.adapter.Name(), "error", err)
		return Handles{}, err
	}

	processLogger := logging.GetLogger("process").With("run_id", s.runID)

	primary := process.New("primary", process.RolePrimary,
		[]string{s.opts.PrimaryBinary, s.env.ConfigPath()}, processLogger)
	primary.SetTimeouts(s.opts.StopTimeout, s.opts.KillTimeout)
	primary.SetLogParser(logging.GetLogger("primary").With("run_id", s.runID), nil)
	if err := primary.Start(); err != nil {
		s.publishSpawnFailed(primary, err)
		return Handles{}, err
	}
	s.handles.Primary = primary
	s.publishStarted(primary)

	cons := process.New(s.adapter.Name(), process.RoleConsumer, consumerArgs, processLogger)
	cons.SetTimeouts(s.opts.StopTimeout, s.opts.KillTimeout)
	s.adapter.Attach(cons)
	s.handles.Consumer = cons

	if err := cons.Start(); err != nil {
		s.publishSpawnFailed(cons, err)
		if s.opts.ConsumerPolicy == PolicyFatal {
			return s.handles, err
		}
		s.logger.Error("Consumer failed to start, primary runs without a frame reader",
			"consumer", s.adapter.Name(), "error", err)
		s.notifier.Status("consumer failed to start")
		return s.handles, nil
	}
	s.publishStarted(cons)

	s.monitorDone = make(chan struct{})
	go s.monitorConsumer(primary, cons, s.monitorDone)

	s.notifier.Ready(fmt.Sprintf("%s running (primary pid %d, %s pid %d)",
		s.opts.Mode, primary.PID(), s.adapter.Name(), cons.PID()))
	return s.handles, nil
}

// Wait blocks until the primary exits and returns its exit status. When ctx
// is cancelled first the primary is stopped and 0 is returned.
func (s *Supervisor) Wait(ctx context.Context) (int, error) {
	primary := s.Handles().Primary
	if primary == nil {
		return ExitFailure, errors.New("run not started")
	}

	select {
	case <-primary.Done():
		code := primary.ExitCode()
		s.logger.Info("Primary exited", "exit_code", code)
		s.publishExited(primary)
		return code, nil

	case <-ctx.Done():
		s.logger.Info("Run interrupted, stopping primary", "cause", context.Cause(ctx))
		s.notifier.Status("interrupted")
		code := primary.Stop()
		s.logger.Info("Primary stopped", "exit_code", code)
		s.publishExited(primary)
		return 0, nil

	case <-s.consumerLost:
		s.logger.Error("Consumer exited, stopping primary")
		primary.Stop()
		s.publishExited(primary)
		return ExitFailure, ErrConsumerExited
	}
}

// Cleanup stops the consumer if it is alive and removes the runtime
// directory. The primary is stopped too when the run was aborted before it
// finished. Every step is attempted; failures are joined. Only the first
// call does any work.
func (s *Supervisor) Cleanup() error {
	s.cleanupOnce.Do(func() {
		s.cleanupErr = s.cleanup()
	})
	return s.cleanupErr
}

func (s *Supervisor) cleanup() error {
	s.notifier.Stopping()
	s.bus.Publish(events.CleanupStartedEvent{RunID: s.runID})
	close(s.closing)

	s.mu.Lock()
	h := s.handles
	stopGuard := s.stopGuard
	monitorDone := s.monitorDone
	s.mu.Unlock()

	if stopGuard != nil {
		stopGuard()
	}

	var errs []error

	if h.Primary != nil && h.Primary.Alive() {
		s.logger.Warn("Primary still running during cleanup, stopping it")
		h.Primary.Stop()
		s.publishExited(h.Primary)
		if h.Primary.Alive() {
			errs = append(errs, fmt.Errorf("primary (pid %d) did not exit", h.Primary.PID()))
		}
	}

	consumerStopped := false
	if h.Consumer != nil && h.Consumer.Alive() {
		s.logger.Info("Stopping consumer", "consumer", h.Consumer.ID(), "pid", h.Consumer.PID())
		h.Consumer.Stop()
		consumerStopped = true
		if h.Consumer.Alive() {
			errs = append(errs, fmt.Errorf("consumer (pid %d) did not exit", h.Consumer.PID()))
		}
	}
	if monitorDone != nil && h.Consumer != nil && !h.Consumer.Alive() {
		<-monitorDone
	}

	if err := s.env.Teardown(); err != nil {
		s.logger.Error("Failed to remove runtime directory", "dir", s.env.Dir(), "error", err)
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	completed := events.CleanupCompletedEvent{RunID: s.runID, ConsumerStopped: consumerStopped}
	if err != nil {
		completed.Error = err.Error()
	}
	s.bus.Publish(completed)
	s.logger.Info("Cleanup complete", "consumer_stopped", consumerStopped)
	return err
}

// monitorConsumer reports the consumer's exit and applies the consumer
// policy when the primary is still running.
func (s *Supervisor) monitorConsumer(primary, cons *process.Process, done chan struct{}) {
	defer close(done)

	<-cons.Done()
	code := cons.ExitCode()
	s.publishExited(cons)

	select {
	case <-s.closing:
		return
	case <-primary.Done():
		return
	case <-time.After(consumerExitGrace):
	}

	fatal := s.opts.ConsumerPolicy == PolicyFatal
	s.bus.Publish(events.ConsumerExitedEvent{
		RunID:    s.runID,
		Mode:     s.opts.Mode.String(),
		ExitCode: code,
		Fatal:    fatal,
	})

	if fatal {
		s.logger.Error("Consumer exited while primary is running", "consumer", cons.ID(), "exit_code", code)
		close(s.consumerLost)
		return
	}
	s.logger.Warn("Consumer exited while primary is running, output is degraded",
		"consumer", cons.ID(), "exit_code", code)
	s.notifier.Status(cons.ID() + " exited, output degraded")
}

func (s *Supervisor) publishStarted(p *process.Process) {
	s.bus.Publish(events.ProcessStartedEvent{
		RunID: s.runID,
		ID:    p.ID(),
		Role:  string(p.Role()),
		PID:   p.PID(),
	})
}

func (s *Supervisor) publishSpawnFailed(p *process.Process, err error) {
	s.bus.Publish(events.ProcessSpawnFailedEvent{
		RunID: s.runID,
		ID:    p.ID(),
		Role:  string(p.Role()),
		Error: err.Error(),
	})
}

// publishExited reports each reaped process once.
func (s *Supervisor) publishExited(p *process.Process) {
	if p.Alive() {
		return
	}
	s.mu.Lock()
	if s.exited[p.ID()] {
		s.mu.Unlock()
		return
	}
	s.exited[p.ID()] = true
	s.mu.Unlock()

	s.bus.Publish(events.ProcessExitedEvent{
		RunID:    s.runID,
		ID:       p.ID(),
		Role:     string(p.Role()),
		ExitCode: p.ExitCode(),
	})
}
