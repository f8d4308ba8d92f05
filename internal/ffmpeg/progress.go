package ffmpeg

import (
	"strconv"
	"strings"
	"sync"
)

// Progress is one block of "-progress" output.
type Progress struct {
	Frame   int64
	FPS     float64
	Speed   float64
	Bitrate string
	OutTime string
	Ended   bool
}

// ProgressParser accumulates "-progress pipe:1" key=value lines and reports a
// Progress each time ffmpeg closes a block with "progress=continue|end".
// It satisfies process.OutputHandler.
type ProgressParser struct {
	mu       sync.Mutex
	fields   map[string]string
	onUpdate func(Progress)
}

// NewProgressParser creates a parser calling onUpdate for every complete block.
func NewProgressParser(onUpdate func(Progress)) *ProgressParser {
	return &ProgressParser{
		fields:   make(map[string]string),
		onUpdate: onUpdate,
	}
}

// HandleLine consumes a stdout line; other sources are ignored.
func (p *ProgressParser) HandleLine(source, line string) {
	if source != "stdout" {
		return
	}
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}

	p.mu.Lock()
	if key != "progress" {
		p.fields[key] = strings.TrimSpace(value)
		p.mu.Unlock()
		return
	}
	progress := parseProgress(p.fields, value == "end")
	p.fields = make(map[string]string)
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(progress)
	}
}

func parseProgress(fields map[string]string, ended bool) Progress {
	progress := Progress{
		Bitrate: fields["bitrate"],
		OutTime: fields["out_time"],
		Ended:   ended,
	}
	if frame, err := strconv.ParseInt(fields["frame"], 10, 64); err == nil {
		progress.Frame = frame
	}
	if fps, err := strconv.ParseFloat(fields["fps"], 64); err == nil {
		progress.FPS = fps
	}
	if speed, err := strconv.ParseFloat(strings.TrimSuffix(fields["speed"], "x"), 64); err == nil {
		progress.Speed = speed
	}
	return progress
}
