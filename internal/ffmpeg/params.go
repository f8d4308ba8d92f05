package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/smazurov/chesscast/internal/audio"
)

// Frame geometry produced by the primary process.
const (
	FrameWidth  = 1920
	FrameHeight = 1080
	FrameRate   = 30
)

// FrameInput describes how the frame channel is demuxed.
type FrameInput struct {
	Format      string // rawvideo or image2pipe
	PixelFormat string // rawvideo only
	Width       int    // rawvideo only
	Height      int    // rawvideo only
	Rate        int
}

// RawRGBA is what the primary writes: headerless 8-bit RGBA frames of
// FrameWidth x FrameHeight, back to back.
var RawRGBA = FrameInput{
	Format:      "rawvideo",
	PixelFormat: "rgba",
	Width:       FrameWidth,
	Height:      FrameHeight,
	Rate:        FrameRate,
}

// ImagePipe reads concatenated encoded images (PNG, JPEG) whose size is
// probed from each image header.
var ImagePipe = FrameInput{Format: "image2pipe", Rate: FrameRate}

// ErrUnknownFrameFormat is returned for an unrecognized frame format name.
var ErrUnknownFrameFormat = errors.New("unknown frame format")

// ParseFrameInput maps a frame format name to its input description.
// "rawvideo" (the default) and "image2pipe" are accepted.
func ParseFrameInput(name string) (FrameInput, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "rawvideo", "raw":
		return RawRGBA, nil
	case "image2pipe", "png":
		return ImagePipe, nil
	default:
		return FrameInput{}, fmt.Errorf("%w: %q", ErrUnknownFrameFormat, name)
	}
}

// Args returns the demuxer options preceding "-i".
func (f FrameInput) Args() []string {
	format := f.Format
	if format == "" {
		format = RawRGBA.Format
	}
	args := []string{"-f", format}
	if format == "rawvideo" {
		pix := f.PixelFormat
		if pix == "" {
			pix = RawRGBA.PixelFormat
		}
		w, h := f.Width, f.Height
		if w <= 0 || h <= 0 {
			w, h = FrameWidth, FrameHeight
		}
		args = append(args, "-pixel_format", pix, "-video_size", strconv.Itoa(w)+"x"+strconv.Itoa(h))
	}
	rate := f.Rate
	if rate <= 0 {
		rate = FrameRate
	}
	return append(args, "-framerate", strconv.Itoa(rate))
}

// Params describes the live encode pipeline. Values are declarative; nothing
// is derived from frame content.
type Params struct {
	// Inputs
	Audio        audio.Source
	FrameChannel string // FIFO path
	Frames       FrameInput
	FPS          int

	// Video encode
	Encoder     string // libx264
	Preset      string // veryfast
	Tune        string // zerolatency
	PixelFormat string // yuv420p
	GOP         int    // keyframe interval in frames
	Bitrate     string
	MaxRate     string
	BufferSize  string

	// Audio encode
	AudioCodec   string // aac
	AudioBitrate string
	AudioRate    int

	// Output
	OutputFormat string // flv
	OutputURL    string // rtmp://server/app/key

	// ProgressPipe enables "-progress pipe:1" key=value reports on stdout.
	ProgressPipe bool
}

// LiveParams returns the fixed live-stream pipeline for the given inputs.
func LiveParams(src audio.Source, frameChannel, outputURL string) *Params {
	return &Params{
		Audio:        src,
		FrameChannel: frameChannel,
		Frames:       RawRGBA,
		FPS:          FrameRate,
		Encoder:      "libx264",
		Preset:       "veryfast",
		Tune:         "zerolatency",
		PixelFormat:  "yuv420p",
		GOP:          FrameRate * 2,
		Bitrate:      "4500k",
		MaxRate:      "4500k",
		BufferSize:   "9000k",
		AudioCodec:   "aac",
		AudioBitrate: "160k",
		AudioRate:    44100,
		OutputFormat: "flv",
		OutputURL:    outputURL,
		ProgressPipe: true,
	}
}
