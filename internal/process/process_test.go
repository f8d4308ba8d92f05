package process

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestProcess creates a Process with short timeouts for testing.
func newTestProcess(args ...string) *Process {
	p := New("test", RoleConsumer, args, testLogger())
	p.SetTimeouts(100*time.Millisecond, 100*time.Millisecond)
	return p
}

// waitDone waits for the process to be reaped, failing the test on timeout.
func waitDone(t *testing.T, p *Process, timeout time.Duration) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
	}
}

func TestStartIsNonBlocking(t *testing.T) {
	p := newTestProcess("sleep", "10")

	start := time.Now()
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Start blocked for %v", elapsed)
	}
	if !p.Alive() {
		t.Error("expected process to be alive")
	}
	if p.PID() == 0 {
		t.Error("expected a pid")
	}
	if p.Role() != RoleConsumer {
		t.Errorf("Role() = %q, want %q", p.Role(), RoleConsumer)
	}
}

func TestGracefulStop(t *testing.T) {
	p := newTestProcess("sh", "-c", "trap 'exit 0' INT TERM; while :; do sleep 0.1; done")
	p.SetTimeouts(time.Second, 0)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if exitCode := p.Stop(); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if p.Alive() {
		t.Error("process should not be alive after Stop")
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	// Ignores SIGINT for the whole group
	p := newTestProcess("sh", "-c", "trap '' INT; sleep 10")
	p.SetTimeouts(50*time.Millisecond, time.Second)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if exitCode := p.Stop(); exitCode != ExitCodeKilled {
		t.Errorf("expected exit code %d, got %d", ExitCodeKilled, exitCode)
	}
	waitDone(t, p, time.Second)
}

func TestStopAlreadyExited(t *testing.T) {
	p := newTestProcess("sh", "-c", "exit 3")
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, time.Second)

	// Must not signal a reaped pid
	if exitCode := p.Stop(); exitCode != 3 {
		t.Errorf("expected exit code 3, got %d", exitCode)
	}
	if exitCode := p.Stop(); exitCode != 3 {
		t.Errorf("second Stop: expected exit code 3, got %d", exitCode)
	}
}

func TestStopNeverStarted(t *testing.T) {
	p := newTestProcess("true")
	if exitCode := p.Stop(); exitCode != 0 {
		t.Errorf("expected 0 for idle process, got %d", exitCode)
	}
	if p.Alive() {
		t.Error("idle process must not be alive")
	}
}

func TestConcurrentStop(t *testing.T) {
	p := newTestProcess("sleep", "10")
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Stop()
		}()
	}
	wg.Wait()

	waitDone(t, p, time.Second)
}

func TestExitCodePropagation(t *testing.T) {
	p := newTestProcess("sh", "-c", "exit 42")
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, time.Second)
	if exitCode := p.ExitCode(); exitCode != 42 {
		t.Errorf("expected exit code 42, got %d", exitCode)
	}
	if p.Alive() {
		t.Error("reaped process must not be alive")
	}
}

func TestSignalledExitCode(t *testing.T) {
	p := newTestProcess("sleep", "10")
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	// sleep dies on SIGINT: 128 + 2
	if exitCode := p.Stop(); exitCode != 130 {
		t.Errorf("expected exit code 130, got %d", exitCode)
	}
}

func TestStartNonExistentCommand(t *testing.T) {
	p := newTestProcess("/nonexistent/command/that/does/not/exist")

	err := p.Start()
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("expected ErrSpawn, got %v", err)
	}
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) || spawnErr.Path != "/nonexistent/command/that/does/not/exist" {
		t.Errorf("unexpected spawn error: %#v", err)
	}
	if p.Alive() {
		t.Error("failed process must not be alive")
	}
	if pid := p.PID(); pid != 0 {
		t.Errorf("PID() on failed spawn = %d, want 0", pid)
	}
	select {
	case <-p.Done():
		t.Error("Done must not close for a process that never spawned")
	default:
	}
}

func TestStartEmptyCommand(t *testing.T) {
	p := newTestProcess()
	if err := p.Start(); !errors.Is(err, ErrSpawn) {
		t.Errorf("expected ErrSpawn for empty command, got %v", err)
	}
}

func TestStartTwice(t *testing.T) {
	p := newTestProcess("sleep", "10")
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if err := p.Start(); err == nil {
		t.Error("expected error when starting twice")
	}
}

type recordingHandler struct {
	mu    sync.Mutex
	lines map[string][]string
}

func (h *recordingHandler) HandleLine(source, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines[source] = append(h.lines[source], line)
}

func TestOutputHandler(t *testing.T) {
	handler := &recordingHandler{lines: make(map[string][]string)}
	p := newTestProcess("sh", "-c", "echo out; echo err >&2")
	p.SetOutputHandler(handler)

	var parsed []string
	var mu sync.Mutex
	p.SetLogParser(testLogger(), func(line string) (slog.Level, string) {
		mu.Lock()
		parsed = append(parsed, line)
		mu.Unlock()
		return slog.LevelDebug, line
	})

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, time.Second)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if got := handler.lines["stdout"]; len(got) != 1 || got[0] != "out" {
		t.Errorf("stdout lines = %v", got)
	}
	if got := handler.lines["stderr"]; len(got) != 1 || got[0] != "err" {
		t.Errorf("stderr lines = %v", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(parsed) != 2 {
		t.Errorf("log parser saw %d lines, want 2", len(parsed))
	}
}

func TestDescendantHoldingOutputDoesNotDelayExit(t *testing.T) {
	// The backgrounded sleep inherits stdout and stderr.
	p := newTestProcess("sh", "-c", "sleep 5 & echo started; exit 3")
	handler := &recordingHandler{lines: make(map[string][]string)}
	p.SetOutputHandler(handler)

	start := time.Now()
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, 2*time.Second)

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Done closed after %v, want well under the descendant's lifetime", elapsed)
	}
	if exitCode := p.ExitCode(); exitCode != 3 {
		t.Errorf("expected exit code 3, got %d", exitCode)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if got := handler.lines["stdout"]; len(got) != 1 || got[0] != "started" {
		t.Errorf("stdout lines = %v", got)
	}
}

func TestOverlongLineDoesNotStallChild(t *testing.T) {
	handler := &recordingHandler{lines: make(map[string][]string)}
	p := newTestProcess("sh", "-c", "head -c 2097152 /dev/zero | tr '\\0' a; echo; echo done; exit 0")
	p.SetOutputHandler(handler)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, 5*time.Second)

	if exitCode := p.ExitCode(); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	got := handler.lines["stdout"]
	if len(got) != 2 {
		t.Fatalf("got %d stdout lines, want 2", len(got))
	}
	if len(got[0]) != MaxLineBytes {
		t.Errorf("first line length = %d, want truncation to %d", len(got[0]), MaxLineBytes)
	}
	if got[1] != "done" {
		t.Errorf("second line = %q, want done", got[1])
	}
}

func TestReadLine(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		limit     int
		want      []string
		truncated []bool
	}{
		{"short lines", "a\nbb\n", 8, []string{"a", "bb"}, []bool{false, false}},
		{"crlf", "a\r\n", 8, []string{"a"}, []bool{false}},
		{"exact limit", "abcd\nx\n", 4, []string{"abcd", "x"}, []bool{false, false}},
		{"over limit", "abcdef\nx\n", 4, []string{"abcd", "x"}, []bool{true, false}},
		{"no trailing newline", "tail", 8, []string{"tail"}, []bool{false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			br := bufio.NewReaderSize(strings.NewReader(tt.input), 16)
			for i, want := range tt.want {
				line, truncated, err := readLine(br, tt.limit)
				if err != nil && !errors.Is(err, io.EOF) {
					t.Fatalf("readLine() error = %v", err)
				}
				if line != want || truncated != tt.truncated[i] {
					t.Errorf("line %d = %q (truncated %v), want %q (truncated %v)", i, line, truncated, want, tt.truncated[i])
				}
			}
		})
	}
}
