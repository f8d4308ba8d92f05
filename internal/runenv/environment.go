// Package runenv owns the per-run working directory and the named pipe that
// carries encoded video frames from the primary process to the consumer.
package runenv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

const (
	// FrameChannelName is the FIFO file name inside the runtime directory.
	FrameChannelName = "video.fifo"
	// ConfigName is the runtime configuration document file name.
	ConfigName = "config.json"

	dirPerm  = 0o700
	fifoPerm = 0o600
)

// ErrSetup is matched by every SetupError.
var ErrSetup = errors.New("environment setup failed")

// SetupError reports a filesystem failure while preparing the runtime directory.
type SetupError struct {
	Op   string
	Path string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("environment setup: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Is reports ErrSetup equivalence so callers can classify without errors.As.
func (e *SetupError) Is(target error) bool { return target == ErrSetup }

// Environment is the runtime directory of a single run. It must not be shared
// between concurrent runs: Initialize removes whatever exists at the path.
type Environment struct {
	dir         string
	framePath   string
	configPath  string
	tearingDown atomic.Bool
}

// New returns an Environment rooted at basePath. Nothing is touched on disk
// until Initialize.
func New(basePath string) *Environment {
	dir := filepath.Clean(basePath)
	return &Environment{
		dir:        dir,
		framePath:  filepath.Join(dir, FrameChannelName),
		configPath: filepath.Join(dir, ConfigName),
	}
}

// Dir returns the runtime directory path.
func (e *Environment) Dir() string { return e.dir }

// FramePath returns the frame channel (FIFO) path.
func (e *Environment) FramePath() string { return e.framePath }

// ConfigPath returns the runtime configuration document path.
func (e *Environment) ConfigPath() string { return e.configPath }

// Initialize recreates the runtime directory from scratch and creates the
// frame channel inside it.
func (e *Environment) Initialize() error {
	if !e.safeDir() {
		return &SetupError{Op: "validate", Path: e.dir, Err: errors.New("refusing to use this path as runtime directory")}
	}
	e.tearingDown.Store(false)

	if err := os.RemoveAll(e.dir); err != nil {
		return &SetupError{Op: "remove", Path: e.dir, Err: err}
	}
	if err := os.MkdirAll(e.dir, dirPerm); err != nil {
		return &SetupError{Op: "mkdir", Path: e.dir, Err: err}
	}
	if err := unix.Mkfifo(e.framePath, fifoPerm); err != nil {
		return &SetupError{Op: "mkfifo", Path: e.framePath, Err: err}
	}
	return nil
}

// Teardown removes the runtime directory and everything in it. Calling it when
// the directory does not exist, or for a path Initialize refuses, is a no-op.
func (e *Environment) Teardown() error {
	e.tearingDown.Store(true)
	if !e.safeDir() {
		return nil
	}
	if err := os.RemoveAll(e.dir); err != nil {
		return fmt.Errorf("remove runtime directory %s: %w", e.dir, err)
	}
	return nil
}

// IsFrameChannel reports whether the frame channel exists and is a named pipe.
func (e *Environment) IsFrameChannel() bool {
	fi, err := os.Lstat(e.framePath)
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeNamedPipe != 0
}

func (e *Environment) safeDir() bool {
	clean := filepath.Clean(e.dir)
	return e.dir != "" && clean != "." && clean != string(filepath.Separator)
}
