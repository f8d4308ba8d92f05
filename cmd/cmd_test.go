package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/chesscast/internal/audio"
	"github.com/smazurov/chesscast/internal/runconfig"
)

func TestRenderConfigRedactsToken(t *testing.T) {
	settings := RenderSettings{
		Credentials: runconfig.Credentials{Account: "twitch-bot-blue", AccessToken: "lip_secret", Channel: "TTVPlaysChess"},
		RuntimeDir:  "/run/chesscast",
	}
	c := CreateRenderConfigCmd(func() RenderSettings { return settings })
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetArgs(nil)

	require.NoError(t, c.Execute())
	assert.NotContains(t, out.String(), "lip_secret")

	var doc runconfig.Document
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "twitch-bot-blue", doc.Lichess.Account)
	assert.Equal(t, "/run/chesscast/video.fifo", doc.FramePath())
}

func TestRenderConfigMissingCredential(t *testing.T) {
	var out bytes.Buffer
	err := RenderConfig(&out, runconfig.Credentials{Account: "bot"}, "/tmp/video.fifo")
	require.ErrorIs(t, err, runconfig.ErrMissingCredential)
	assert.Empty(t, out.String())
}

func TestAudioSourceCmd(t *testing.T) {
	c := CreateAudioSourceCmd()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetArgs([]string{"--goos", "darwin"})

	require.NoError(t, c.Execute())
	assert.Equal(t, "darwin\t-f avfoundation -i :0\n", out.String())
}

func TestAudioSourceCmdUnresolved(t *testing.T) {
	c := CreateAudioSourceCmd()
	c.SetOut(&bytes.Buffer{})
	c.SetErr(&bytes.Buffer{})
	c.SetArgs([]string{"--goos", "plan9"})

	assert.ErrorIs(t, c.Execute(), audio.ErrUnresolvedPlatform)
}

func TestVersionCmd(t *testing.T) {
	c := CreateVersionCmd()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetArgs(nil)
	require.NoError(t, c.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "chesscast "))

	c = CreateVersionCmd()
	out.Reset()
	c.SetOut(&out)
	c.SetArgs([]string{"--json"})
	require.NoError(t, c.Execute())

	var info map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Contains(t, info, "version")
}
