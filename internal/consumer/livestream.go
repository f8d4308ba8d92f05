package consumer

import (
	"fmt"
	"log/slog"

	"github.com/smazurov/chesscast/internal/audio"
	"github.com/smazurov/chesscast/internal/ffmpeg"
	"github.com/smazurov/chesscast/internal/logging"
	"github.com/smazurov/chesscast/internal/metrics"
	"github.com/smazurov/chesscast/internal/process"
	"github.com/smazurov/chesscast/internal/runconfig"
)

// DefaultEncoderBinary is the live-stream encoder.
const DefaultEncoderBinary = "ffmpeg"

// LiveStream encodes frames plus host audio and publishes them over RTMP.
type LiveStream struct {
	Binary string
	Target runconfig.StreamTarget
	// GOOS selects the audio capture source; empty means the host.
	GOOS string
	// Frames describes the frame channel encoding.
	Frames ffmpeg.FrameInput
	Logger *slog.Logger
	// OnProgress, when set, receives every encoder progress report.
	OnProgress func(ffmpeg.Progress)
}

// NewLiveStream returns a LiveStream publishing to target.
func NewLiveStream(binary string, target runconfig.StreamTarget) *LiveStream {
	if binary == "" {
		binary = DefaultEncoderBinary
	}
	return &LiveStream{
		Binary: binary,
		Target: target,
		Frames: ffmpeg.RawRGBA,
		Logger: logging.GetLogger("ffmpeg"),
	}
}

// Name implements Adapter.
func (s *LiveStream) Name() string { return "stream" }

// Command implements Adapter. It fails with a MissingCredentialError when the
// target is incomplete and with audio.ErrUnresolvedPlatform on hosts without
// a default capture source.
func (s *LiveStream) Command(framePath string) ([]string, error) {
	if err := s.Target.Validate(); err != nil {
		return nil, err
	}

	src, err := s.audioSource()
	if err != nil {
		return nil, err
	}

	endpoint := ffmpeg.PublishEndpoint(s.Target.IngestServer, s.Target.StreamKey)
	params := ffmpeg.LiveParams(src, framePath, endpoint)
	params.Frames = s.Frames
	args, err := ffmpeg.BuildArgs(s.Binary, params)
	if err != nil {
		return nil, fmt.Errorf("build encoder command: %w", err)
	}
	return args, nil
}

// Attach implements Adapter. Progress reports feed the encoder gauges.
func (s *LiveStream) Attach(p *process.Process) {
	p.SetLogParser(s.Logger, ffmpeg.ParseLogLevel)
	p.SetOutputHandler(ffmpeg.NewProgressParser(func(progress ffmpeg.Progress) {
		metrics.SetEncoderProgress(progress.FPS, progress.Speed, progress.Frame)
		if s.OnProgress != nil {
			s.OnProgress(progress)
		}
	}))
}

func (s *LiveStream) audioSource() (audio.Source, error) {
	if s.GOOS == "" {
		return audio.HostSource()
	}
	return audio.DefaultSource(s.GOOS)
}
