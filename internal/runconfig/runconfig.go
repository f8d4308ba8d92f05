// Package runconfig renders the configuration document read by the primary
// chess process.
package runconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// Field names reported by MissingCredentialError.
const (
	FieldAccount     = "lichess.account"
	FieldAccessToken = "lichess.access_token"
	FieldChannel     = "twitch.channel"
	FieldStreamKey   = "twitch.stream_key"
	FieldIngest      = "twitch.ingest_server"
)

const documentPerm = 0o600

// ErrMissingCredential is matched by every MissingCredentialError.
var ErrMissingCredential = errors.New("missing credential")

// MissingCredentialError names the first required credential that was empty.
type MissingCredentialError struct {
	Field string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing credential: %s", e.Field)
}

// Is reports ErrMissingCredential equivalence.
func (e *MissingCredentialError) Is(target error) bool { return target == ErrMissingCredential }

// Credentials are the identities the primary process needs for every run.
type Credentials struct {
	Account     string
	AccessToken string
	Channel     string
}

// Validate returns a MissingCredentialError for the first empty field,
// checked in account, access token, channel order.
func (c Credentials) Validate() error {
	switch {
	case c.Account == "":
		return &MissingCredentialError{Field: FieldAccount}
	case c.AccessToken == "":
		return &MissingCredentialError{Field: FieldAccessToken}
	case c.Channel == "":
		return &MissingCredentialError{Field: FieldChannel}
	}
	return nil
}

// Document is the on-disk runtime configuration. Field names are a stable
// contract with the primary process.
type Document struct {
	Lichess    Lichess    `json:"lichess"`
	Twitch     Twitch     `json:"twitch"`
	Livestream Livestream `json:"livestream"`
}

// Lichess holds the chess platform account.
type Lichess struct {
	Account     string `json:"account"`
	AccessToken string `json:"access_token"`
}

// Twitch holds the chat channel identity.
type Twitch struct {
	Channel string `json:"channel"`
}

// Livestream describes where the primary writes frames.
type Livestream struct {
	Video Video `json:"video"`
}

// Video holds the frame channel path.
type Video struct {
	FIFO string `json:"fifo"`
}

// FramePath returns the frame channel path recorded in the document.
func (d *Document) FramePath() string { return d.Livestream.Video.FIFO }

// Redacted returns a copy with the access token masked, for display.
func (d Document) Redacted() Document {
	if d.Lichess.AccessToken != "" {
		d.Lichess.AccessToken = "********"
	}
	return d
}

// Build validates the credentials and assembles the document without
// touching the filesystem.
func Build(creds Credentials, framePath string) (*Document, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if framePath == "" {
		return nil, errors.New("frame channel path is empty")
	}
	return &Document{
		Lichess:    Lichess{Account: creds.Account, AccessToken: creds.AccessToken},
		Twitch:     Twitch{Channel: creds.Channel},
		Livestream: Livestream{Video: Video{FIFO: framePath}},
	}, nil
}

// Generate validates the credentials, then atomically writes the document to
// path. Nothing is written when validation fails.
func Generate(creds Credentials, framePath, path string) (*Document, error) {
	doc, err := Build(creds, framePath)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode runtime config: %w", err)
	}
	data = append(data, '\n')

	if err := renameio.WriteFile(filepath.Clean(path), data, documentPerm); err != nil {
		return nil, fmt.Errorf("write runtime config %s: %w", path, err)
	}
	return doc, nil
}

// StreamTarget is where a live stream is published.
type StreamTarget struct {
	IngestServer string
	StreamKey    string
}

// Validate returns a MissingCredentialError for the first empty field,
// checked in ingest server, stream key order.
func (t StreamTarget) Validate() error {
	switch {
	case t.IngestServer == "":
		return &MissingCredentialError{Field: FieldIngest}
	case t.StreamKey == "":
		return &MissingCredentialError{Field: FieldStreamKey}
	}
	return nil
}
