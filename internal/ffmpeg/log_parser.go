package ffmpeg

import (
	"log/slog"
	"strings"
)

// ParseLogLevel maps a line of ffmpeg/ffplay output, produced with
// "-loglevel level+info", to a slog level. Lines look like "[info] msg" or
// "[component @ 0x...] [warning] msg"; the level tag is stripped and the
// component kept. Progress "key=value" lines are demoted to debug.
func ParseLogLevel(line string) (slog.Level, string) {
	if isProgressLine(line) {
		return slog.LevelDebug, line
	}
	if len(line) < 3 || line[0] != '[' {
		return slog.LevelInfo, line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return slog.LevelInfo, line
	}

	if level, ok := levelFromTag(line[1:end]); ok {
		return level, line[end+2:]
	}

	component, rest := line[:end+2], line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if next := strings.Index(rest, "] "); next != -1 {
			if level, ok := levelFromTag(rest[1:next]); ok {
				return level, component + rest[next+2:]
			}
		}
	}

	return slog.LevelInfo, line
}

func levelFromTag(tag string) (slog.Level, bool) {
	switch tag {
	case "quiet", "panic", "fatal", "error":
		return slog.LevelError, true
	case "warning":
		return slog.LevelWarn, true
	case "info":
		return slog.LevelInfo, true
	case "verbose", "debug", "trace":
		return slog.LevelDebug, true
	}
	return 0, false
}

func isProgressLine(line string) bool {
	key, _, ok := strings.Cut(line, "=")
	return ok && key != "" && !strings.ContainsAny(key, " [")
}
