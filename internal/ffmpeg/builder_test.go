package ffmpeg

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/smazurov/chesscast/internal/audio"
)

func TestPublishEndpoint(t *testing.T) {
	got := PublishEndpoint("rtmp.example.com", "abcd")
	if want := "rtmp://rtmp.example.com/app/abcd"; got != want {
		t.Errorf("PublishEndpoint() = %q, want %q", got, want)
	}
}

func TestBuildArgsLiveStream(t *testing.T) {
	params := LiveParams(audio.ALSADefault, "/tmp/run/video.fifo", "rtmp://live.example.com/app/key")

	args, err := BuildArgs("ffmpeg", params)
	if err != nil {
		t.Fatalf("BuildArgs() error = %v", err)
	}
	if args[0] != "ffmpeg" {
		t.Errorf("args[0] = %q, want ffmpeg", args[0])
	}

	cmd := strings.Join(args, " ")
	for _, want := range []string{
		"-f alsa -i default",
		"-f rawvideo -pixel_format rgba -video_size 1920x1080 -framerate 30 -i /tmp/run/video.fifo",
		"-map 1:v -map 0:a",
		"-c:v libx264 -preset veryfast -tune zerolatency",
		"-pix_fmt yuv420p -r 30",
		"-c:a aac",
		"-progress pipe:1",
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("command missing %q\n%s", want, cmd)
		}
	}

	if last := args[len(args)-1]; last != "rtmp://live.example.com/app/key" {
		t.Errorf("last arg = %q, want publish endpoint", last)
	}
	if got := args[len(args)-3 : len(args)-1]; !slices.Equal(got, []string{"-f", "flv"}) {
		t.Errorf("output format args = %v, want [-f flv]", got)
	}
}

func TestBuildArgsDarwinAudio(t *testing.T) {
	params := LiveParams(audio.AVFoundationDefault, "/tmp/video.fifo", "rtmp://x/app/y")

	args, err := BuildArgs("ffmpeg", params)
	if err != nil {
		t.Fatalf("BuildArgs() error = %v", err)
	}
	if !strings.Contains(strings.Join(args, " "), "-f avfoundation -i :0") {
		t.Errorf("darwin audio input not present: %v", args)
	}
}

func TestBuildArgsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"missing channel", func(p *Params) { p.FrameChannel = "" }},
		{"missing output", func(p *Params) { p.OutputURL = "" }},
		{"missing audio", func(p *Params) { p.Audio = audio.Source{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := LiveParams(audio.ALSADefault, "/tmp/video.fifo", "rtmp://x/app/y")
			tt.mutate(params)
			if _, err := BuildArgs("ffmpeg", params); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPreviewArgs(t *testing.T) {
	args := PreviewArgs("ffplay", "/tmp/video.fifo", "chesscast", RawRGBA)

	cmd := strings.Join(args, " ")
	if args[0] != "ffplay" {
		t.Errorf("args[0] = %q, want ffplay", args[0])
	}
	if !strings.HasSuffix(cmd, "-f rawvideo -pixel_format rgba -video_size 1920x1080 -framerate 30 -i /tmp/video.fifo") {
		t.Errorf("preview must read the frame channel as raw RGBA: %s", cmd)
	}
	if !strings.Contains(cmd, "-window_title chesscast") {
		t.Errorf("missing window title: %s", cmd)
	}
}

func TestFrameInputArgs(t *testing.T) {
	tests := []struct {
		name string
		in   FrameInput
		want []string
	}{
		{
			name: "raw rgba",
			in:   RawRGBA,
			want: []string{"-f", "rawvideo", "-pixel_format", "rgba", "-video_size", "1920x1080", "-framerate", "30"},
		},
		{
			name: "zero value defaults to raw rgba",
			in:   FrameInput{},
			want: []string{"-f", "rawvideo", "-pixel_format", "rgba", "-video_size", "1920x1080", "-framerate", "30"},
		},
		{
			name: "custom raw geometry",
			in:   FrameInput{Format: "rawvideo", PixelFormat: "bgra", Width: 1280, Height: 720, Rate: 60},
			want: []string{"-f", "rawvideo", "-pixel_format", "bgra", "-video_size", "1280x720", "-framerate", "60"},
		},
		{
			name: "image pipe",
			in:   ImagePipe,
			want: []string{"-f", "image2pipe", "-framerate", "30"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Args(); !slices.Equal(got, tt.want) {
				t.Errorf("Args() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildArgsImagePipe(t *testing.T) {
	params := LiveParams(audio.ALSADefault, "/tmp/video.fifo", "rtmp://x/app/y")
	params.Frames = ImagePipe

	args, err := BuildArgs("ffmpeg", params)
	if err != nil {
		t.Fatalf("BuildArgs() error = %v", err)
	}
	cmd := strings.Join(args, " ")
	if !strings.Contains(cmd, "-f image2pipe -framerate 30 -i /tmp/video.fifo") {
		t.Errorf("image pipe input not present: %s", cmd)
	}
	if strings.Contains(cmd, "-video_size") {
		t.Errorf("image pipe must not force a geometry: %s", cmd)
	}
}

func TestParseFrameInput(t *testing.T) {
	tests := []struct {
		name    string
		want    FrameInput
		wantErr bool
	}{
		{"", RawRGBA, false},
		{"rawvideo", RawRGBA, false},
		{" RAW ", RawRGBA, false},
		{"image2pipe", ImagePipe, false},
		{"png", ImagePipe, false},
		{"mjpeg", FrameInput{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFrameInput(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFrameFormat) {
					t.Errorf("ParseFrameInput(%q) error = %v, want ErrUnknownFrameFormat", tt.name, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFrameInput(%q) = %+v, %v; want %+v", tt.name, got, err, tt.want)
			}
		})
	}
}
