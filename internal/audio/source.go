// Package audio selects the capture device mixed into the live stream.
package audio

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrUnresolvedPlatform is returned for hosts without a known default capture
// source. No fallback is applied.
var ErrUnresolvedPlatform = errors.New("no default audio capture source for platform")

// Source is an ffmpeg input: demuxer format plus device name.
type Source struct {
	Format string // ffmpeg -f value
	Device string // ffmpeg -i value
}

// String renders the source the way it appears on the ffmpeg command line.
func (s Source) String() string {
	return fmt.Sprintf("-f %s -i %s", s.Format, s.Device)
}

var (
	// ALSADefault is the default ALSA capture PCM on Linux hosts.
	ALSADefault = Source{Format: "alsa", Device: "default"}
	// AVFoundationDefault is the first audio device on Darwin hosts (no video).
	AVFoundationDefault = Source{Format: "avfoundation", Device: ":0"}
)

// DefaultSource returns the capture source for goos.
func DefaultSource(goos string) (Source, error) {
	switch goos {
	case "linux":
		return ALSADefault, nil
	case "darwin":
		return AVFoundationDefault, nil
	default:
		return Source{}, fmt.Errorf("%w: %s", ErrUnresolvedPlatform, goos)
	}
}

// HostSource returns the capture source for the running host.
func HostSource() (Source, error) {
	return DefaultSource(runtime.GOOS)
}
