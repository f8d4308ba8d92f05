package ffmpeg

import "testing"

func TestProgressParser(t *testing.T) {
	var got []Progress
	parser := NewProgressParser(func(p Progress) { got = append(got, p) })

	lines := []string{
		"frame=120",
		"fps=29.97",
		"bitrate=4512.3kbits/s",
		"out_time=00:00:04.000000",
		"speed=1.01x",
		"progress=continue",
		"frame=150",
		"fps=30.00",
		"speed=1x",
		"progress=end",
	}
	for _, line := range lines {
		parser.HandleLine("stdout", line)
	}

	if len(got) != 2 {
		t.Fatalf("got %d updates, want 2", len(got))
	}

	first := got[0]
	if first.Frame != 120 || first.FPS != 29.97 || first.Speed != 1.01 {
		t.Errorf("first update = %+v", first)
	}
	if first.Bitrate != "4512.3kbits/s" || first.OutTime != "00:00:04.000000" {
		t.Errorf("first update text fields = %+v", first)
	}
	if first.Ended {
		t.Error("first block should not be final")
	}

	second := got[1]
	if second.Frame != 150 || second.Speed != 1 || !second.Ended {
		t.Errorf("second update = %+v", second)
	}
	if second.Bitrate != "" {
		t.Errorf("fields must reset between blocks, bitrate = %q", second.Bitrate)
	}
}

func TestProgressParserIgnoresStderr(t *testing.T) {
	calls := 0
	parser := NewProgressParser(func(Progress) { calls++ })

	parser.HandleLine("stderr", "progress=continue")
	parser.HandleLine("stdout", "not a key value line")

	if calls != 0 {
		t.Errorf("unexpected updates: %d", calls)
	}
}
