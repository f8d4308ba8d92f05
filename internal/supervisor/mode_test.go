package supervisor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smazurov/chesscast/internal/ffmpeg"
	"github.com/smazurov/chesscast/internal/process"
	"github.com/smazurov/chesscast/internal/runconfig"
	"github.com/smazurov/chesscast/internal/runenv"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"preview", ModePreview, false},
		{"stream", ModeLiveStream, false},
		{"livestream", ModeLiveStream, false},
		{" Stream ", ModeLiveStream, false},
		{"", 0, true},
		{"record", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownMode, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "preview", ModePreview.String())
	assert.Equal(t, "stream", ModeLiveStream.String())
	assert.Equal(t, "mode(7)", Mode(7).String())
	assert.False(t, Mode(0).Valid())
}

func TestParseConsumerPolicy(t *testing.T) {
	p, err := ParseConsumerPolicy("")
	assert.NoError(t, err)
	assert.Equal(t, PolicyWarn, p)

	p, err = ParseConsumerPolicy("FATAL")
	assert.NoError(t, err)
	assert.Equal(t, PolicyFatal, p)

	_, err = ParseConsumerPolicy("restart")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
		want   int
	}{
		{"primary success", 0, nil, 0},
		{"primary failure", 7, nil, 7},
		{"unknown mode", 0, fmt.Errorf("parse: %w", ErrUnknownMode), ExitUsage},
		{"unknown policy", 0, ErrUnknownPolicy, ExitUsage},
		{"unknown frame format", 0, fmt.Errorf("parse: %w", ffmpeg.ErrUnknownFrameFormat), ExitUsage},
		{"invalid timeout", 0, fmt.Errorf("%w: --stop-timeout: bad", ErrInvalidTimeout), ExitUsage},
		{"missing credential", 0, &runconfig.MissingCredentialError{Field: runconfig.FieldAccount}, ExitFailure},
		{"setup", 0, &runenv.SetupError{Op: "mkfifo", Path: "/x", Err: errors.New("boom")}, ExitFailure},
		{"spawn", 0, &process.SpawnError{ID: "primary", Err: errors.New("enoent")}, ExitFailure},
		{"consumer exited", 0, ErrConsumerExited, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.status, tt.err))
		})
	}
}
