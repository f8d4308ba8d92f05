package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ExitCodeKilled is reported when a process had to be force-killed.
const ExitCodeKilled = 137

// MaxLineBytes bounds one line of process output; longer lines are truncated.
const MaxLineBytes = 1024 * 1024

// outputDrainDelay bounds how long output is still read after the child has
// exited, for descendants that inherited its stdout or stderr.
const outputDrainDelay = 250 * time.Millisecond

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser maps a line of process output to a log level and message.
type LogParser func(line string) (slog.Level, string)

// ErrSpawn is matched by every SpawnError.
var ErrSpawn = errors.New("process spawn failed")

// SpawnError reports that an executable could not be launched.
type SpawnError struct {
	ID   string
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s (%s): %v", e.ID, e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Is reports ErrSpawn equivalence.
func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// Process manages the lifecycle of one subprocess.
type Process struct {
	id              string
	role            Role
	args            []string
	logger          *slog.Logger
	processLogger   *slog.Logger // logger for process output (nil = use logger)
	logParser       LogParser    // nil = every line at info
	outputHandler   OutputHandler
	gracefulTimeout time.Duration // SIGINT to SIGKILL escalation delay
	killTimeout     time.Duration // wait after SIGKILL before giving up

	mu        sync.RWMutex
	cmd       *exec.Cmd
	state     State
	startedAt time.Time
	exitCode  int
	done      chan struct{}
}

// New creates a process handle. args[0] is the executable.
func New(id string, role Role, args []string, logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{
		id:              id,
		role:            role,
		args:            args,
		logger:          logger.With("process", id, "role", string(role)),
		state:           StateIdle,
		done:            make(chan struct{}),
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
	}
}

// SetLogParser sets the logger and level parser used for process output.
func (p *Process) SetLogParser(logger *slog.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetOutputHandler registers a handler receiving every output line.
func (p *Process) SetOutputHandler(handler OutputHandler) {
	p.outputHandler = handler
}

// SetTimeouts overrides the graceful stop and post-kill wait intervals.
// Non-positive values keep the current setting.
func (p *Process) SetTimeouts(graceful, kill time.Duration) {
	if graceful > 0 {
		p.gracefulTimeout = graceful
	}
	if kill > 0 {
		p.killTimeout = kill
	}
}

// ID returns the process identifier.
func (p *Process) ID() string { return p.id }

// Role returns the process role.
func (p *Process) Role() Role { return p.role }

// Args returns the argv the process was created with.
func (p *Process) Args() []string { return p.args }

// Done is closed once the process has been reaped. It is never closed for a
// process that failed to spawn.
func (p *Process) Done() <-chan struct{} { return p.done }

// Start spawns the process without waiting for it.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return fmt.Errorf("process %s already started", p.id)
	}
	if len(p.args) == 0 || p.args[0] == "" {
		return p.failLocked("", errors.New("empty command"))
	}

	cmd := exec.Command(p.args[0], p.args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Plain *os.File outputs keep cmd.Wait independent of pipe EOF.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return p.failLocked(p.args[0], err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return p.failLocked(p.args[0], err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()
	closeAll(stdoutW, stderrW)
	if err != nil {
		closeAll(stdoutR, stderrR)
		return p.failLocked(p.args[0], err)
	}

	p.cmd = cmd
	p.state = StateRunning
	p.startedAt = time.Now()
	p.logger.Info("Process started", "pid", cmd.Process.Pid, "command", p.args)

	go p.reap(stdoutR, stderrR)
	return nil
}

func (p *Process) failLocked(path string, err error) error {
	p.state = StateError
	p.logger.Error("Failed to start process", "error", err, "command", p.args)
	return &SpawnError{ID: p.id, Path: path, Err: err}
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// reap waits for the child while both output streams are read. Output still
// open outputDrainDelay after the exit is closed, so a descendant holding the
// pipes cannot delay Done.
func (p *Process) reap(stdout, stderr *os.File) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.streamOutput(stdout, "stdout")
	}()
	go func() {
		defer wg.Done()
		p.streamOutput(stderr, "stderr")
	}()

	waitErr := p.cmd.Wait()
	exitCode := exitCodeFromError(waitErr)

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(outputDrainDelay):
		p.logger.Debug("Output still open after exit, closing it")
	}
	closeAll(stdout, stderr)
	<-drained

	p.mu.Lock()
	p.state = StateExited
	p.exitCode = exitCode
	uptime := time.Since(p.startedAt)
	p.mu.Unlock()

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		p.logger.Warn("Process wait failed", "error", waitErr)
	}
	p.logger.Info("Process exited", "exit_code", exitCode, "uptime", uptime.Round(time.Millisecond))
	close(p.done)
}

// Alive reports whether the process has been spawned and not yet reaped.
func (p *Process) Alive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == StateRunning || p.state == StateStopping
}

// PID returns the OS process id, or 0 if the process never started.
func (p *Process) PID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// ExitCode returns the exit code of a reaped process.
func (p *Process) ExitCode() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitCode
}

// Stop asks the process group to exit with SIGINT and escalates to SIGKILL
// after the graceful timeout. Stopping a process that is not alive is a
// no-op returning its last exit code.
func (p *Process) Stop() int {
	p.mu.Lock()
	switch p.state {
	case StateRunning:
		p.state = StateStopping
	case StateStopping:
		p.mu.Unlock()
		return p.waitBounded()
	default:
		code := p.exitCode
		p.mu.Unlock()
		return code
	}
	pid := p.cmd.Process.Pid
	p.mu.Unlock()

	p.logger.Info("Sending SIGINT to process group", "pid", pid)
	p.signalGroup(pid, syscall.SIGINT)

	select {
	case <-p.done:
		return p.ExitCode()
	case <-time.After(p.gracefulTimeout):
	}

	p.logger.Warn("Graceful shutdown timeout, forcing kill", "pid", pid, "timeout", p.gracefulTimeout)
	p.signalGroup(pid, syscall.SIGKILL)

	select {
	case <-p.done:
	case <-time.After(p.killTimeout):
		p.logger.Error("Process did not exit after kill signal", "pid", pid)
	}
	return ExitCodeKilled
}

func (p *Process) waitBounded() int {
	select {
	case <-p.done:
		return p.ExitCode()
	case <-time.After(p.gracefulTimeout + p.killTimeout):
		return ExitCodeKilled
	}
}

// signalGroup signals the whole process group, falling back to the leader.
func (p *Process) signalGroup(pid int, sig syscall.Signal) {
	err := syscall.Kill(-pid, sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return
	}
	if err := p.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to signal process", "signal", sig.String(), "error", err)
	}
}

// exitCodeFromError returns 0 for nil, the exit status for a normal exit,
// 128+signal for a signalled child and 1 for anything else.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 1
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}

// streamOutput forwards each line to the output handler and the logger.
// Lines over MaxLineBytes are truncated and the rest of the line discarded,
// so the child never blocks on a full pipe.
func (p *Process) streamOutput(reader io.Reader, source string) {
	br := bufio.NewReaderSize(reader, 64*1024)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}
	logger = logger.With("source", source)

	for {
		line, truncated, err := readLine(br, MaxLineBytes)
		if truncated {
			p.logger.Warn("Output line truncated", "source", source, "limit", MaxLineBytes)
		}
		if err == nil || line != "" {
			if p.outputHandler != nil {
				p.outputHandler.HandleLine(source, line)
			}

			level, msg := slog.LevelInfo, line
			if p.logParser != nil {
				level, msg = p.logParser(line)
			}
			logger.Log(context.Background(), level, msg)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				p.logger.Warn("Error reading output", "source", source, "error", err)
			}
			return
		}
	}
}

// readLine returns the next line without its terminator, keeping at most
// limit bytes of it.
func readLine(br *bufio.Reader, limit int) (string, bool, error) {
	var (
		buf       []byte
		truncated bool
	)
	for {
		frag, err := br.ReadSlice('\n')
		if room := limit - len(buf); len(frag) > room {
			if room > 0 {
				buf = append(buf, frag[:room]...)
			}
			truncated = truncated || len(bytes.TrimRight(frag[max(room, 0):], "\r\n")) > 0
		} else {
			buf = append(buf, frag...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return string(bytes.TrimRight(buf, "\r\n")), truncated, err
	}
}
