package consumer

import (
	"errors"
	"log/slog"

	"github.com/smazurov/chesscast/internal/ffmpeg"
	"github.com/smazurov/chesscast/internal/logging"
	"github.com/smazurov/chesscast/internal/process"
)

// DefaultPreviewBinary is the local renderer.
const DefaultPreviewBinary = "ffplay"

const previewTitle = "chesscast preview"

// Preview renders frames in a local window.
type Preview struct {
	Binary string
	Title  string
	Frames ffmpeg.FrameInput
	Logger *slog.Logger
}

// NewPreview returns a Preview using binary, or ffplay when empty.
func NewPreview(binary string) *Preview {
	if binary == "" {
		binary = DefaultPreviewBinary
	}
	return &Preview{
		Binary: binary,
		Title:  previewTitle,
		Frames: ffmpeg.RawRGBA,
		Logger: logging.GetLogger("preview"),
	}
}

// Name implements Adapter.
func (v *Preview) Name() string { return "preview" }

// Command implements Adapter.
func (v *Preview) Command(framePath string) ([]string, error) {
	if framePath == "" {
		return nil, errors.New("frame channel path is required")
	}
	title := v.Title
	if title == "" {
		title = previewTitle
	}
	return ffmpeg.PreviewArgs(v.Binary, framePath, title, v.Frames), nil
}

// Attach implements Adapter.
func (v *Preview) Attach(p *process.Process) {
	p.SetLogParser(v.Logger, ffmpeg.ParseLogLevel)
}
