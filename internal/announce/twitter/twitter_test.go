package twitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/blacktop/arbiter/internal/announce"
	"github.com/blacktop/arbiter/internal/config"
)

func TestAppendChunksSegmentation(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		chunkSize int
		wantCalls int
	}{
		{"empty file", 0, 4, 0},
		{"smaller than one chunk", 3, 4, 1},
		{"exact single chunk", 4, 4, 1},
		{"exact multiple", 12, 4, 3},
		{"trailing partial chunk", 13, 4, 4},
		{"chunk larger than file", 5, 1024, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Repeat([]byte{0xAB}, tt.size)

			var segments []int
			var received int64
			total, err := appendChunks(context.Background(), bytes.NewReader(data), tt.chunkSize, func(_ context.Context, segment int, chunk []byte) error {
				segments = append(segments, segment)
				received += int64(len(chunk))
				return nil
			})
			if err != nil {
				t.Fatalf("appendChunks() error = %v", err)
			}
			if len(segments) != tt.wantCalls {
				t.Fatalf("append calls = %d, want %d", len(segments), tt.wantCalls)
			}
			for i, segment := range segments {
				if segment != i {
					t.Errorf("segment index %d = %d, want strictly increasing from 0", i, segment)
				}
			}
			if total != int64(tt.size) || received != int64(tt.size) {
				t.Errorf("bytes sent = %d (callback saw %d), want %d", total, received, tt.size)
			}
		})
	}
}

func TestAppendChunksAbortsOnFailure(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, 10)

	calls := 0
	_, err := appendChunks(context.Background(), bytes.NewReader(data), 4, func(_ context.Context, segment int, _ []byte) error {
		calls++
		if segment == 1 {
			return fmt.Errorf("network down")
		}
		return nil
	})
	if err == nil {
		t.Fatal("appendChunks() = nil error, want abort")
	}
	if calls != 2 {
		t.Errorf("append calls = %d, want 2 (no retry, no further segments)", calls)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk error") }

func TestAppendChunksReadFailure(t *testing.T) {
	_, err := appendChunks(context.Background(), failingReader{}, 4, func(context.Context, int, []byte) error {
		t.Fatal("send should not be called when the read fails")
		return nil
	})
	if err == nil {
		t.Fatal("appendChunks() = nil error, want read failure")
	}
}

func TestResolveQuote(t *testing.T) {
	c := &Client{username: "organizer"}
	tests := []struct {
		permalink string
		want      string
		wantErr   bool
	}{
		{"https://x.com/organizer/status/1853194718902878372", "1853194718902878372", false},
		{"https://twitter.com/someone/status/42", "42", false},
		{"https://x.com/organizer", "", true},
		{"https://www.threads.net/@organizer/post/abc", "", true},
		{"not a url at all \x7f", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.permalink, func(t *testing.T) {
			got, err := c.ResolveQuote(context.Background(), tt.permalink)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveQuote() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveQuote() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	var missingErr announce.MissingCredentialError
	_, err := New(config.Twitter{Username: "organizer"}, t.TempDir())
	if !errors.As(err, &missingErr) {
		t.Fatalf("New() error = %v, want MissingCredentialError", err)
	}
	if len(missingErr.Keys) != 4 {
		t.Errorf("missing keys = %v, want the four OAuth 1.0a fields", missingErr.Keys)
	}
}
