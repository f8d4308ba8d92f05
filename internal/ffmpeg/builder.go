package ffmpeg

import (
	"errors"
	"strconv"
)

// BuildArgs builds the encoder argv (binary first) from structured parameters.
// Audio is input 0, the frame channel input 1.
func BuildArgs(binary string, p *Params) ([]string, error) {
	if p.FrameChannel == "" {
		return nil, errors.New("frame channel path is required")
	}
	if p.OutputURL == "" {
		return nil, errors.New("output URL is required")
	}
	if p.Audio.Format == "" || p.Audio.Device == "" {
		return nil, errors.New("audio source is required")
	}

	args := []string{binary, "-hide_banner", "-loglevel", "level+info"}
	if p.ProgressPipe {
		args = append(args, "-nostats", "-progress", "pipe:1")
	}

	// Inputs
	args = append(args,
		"-thread_queue_size", "1024",
		"-f", p.Audio.Format, "-i", p.Audio.Device,
		"-thread_queue_size", "1024",
	)
	args = append(args, p.Frames.Args()...)
	args = append(args,
		"-i", p.FrameChannel,
		"-map", "1:v", "-map", "0:a",
	)

	// Video
	args = append(args, "-c:v", p.Encoder)
	if p.Preset != "" {
		args = append(args, "-preset", p.Preset)
	}
	if p.Tune != "" {
		args = append(args, "-tune", p.Tune)
	}
	args = append(args, "-pix_fmt", p.PixelFormat, "-r", strconv.Itoa(p.FPS))
	if p.GOP > 0 {
		args = append(args, "-g", strconv.Itoa(p.GOP), "-keyint_min", strconv.Itoa(p.GOP))
	}
	if p.Bitrate != "" {
		args = append(args, "-b:v", p.Bitrate)
	}
	if p.MaxRate != "" {
		args = append(args, "-maxrate", p.MaxRate)
	}
	if p.BufferSize != "" {
		args = append(args, "-bufsize", p.BufferSize)
	}

	// Audio
	args = append(args, "-c:a", p.AudioCodec)
	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	if p.AudioRate > 0 {
		args = append(args, "-ar", strconv.Itoa(p.AudioRate))
	}

	return append(args, "-f", p.OutputFormat, p.OutputURL), nil
}

// PreviewArgs builds the ffplay argv that renders the frame channel in a
// local window.
func PreviewArgs(binary, frameChannel, title string, in FrameInput) []string {
	args := []string{
		binary,
		"-hide_banner", "-loglevel", "level+info",
		"-window_title", title,
		"-x", strconv.Itoa(FrameWidth / 2), "-y", strconv.Itoa(FrameHeight / 2),
	}
	args = append(args, in.Args()...)
	return append(args, "-i", frameChannel)
}

// PublishEndpoint combines an ingest server and stream key into the RTMP
// publish URL.
func PublishEndpoint(ingestServer, streamKey string) string {
	return "rtmp://" + ingestServer + "/app/" + streamKey
}
