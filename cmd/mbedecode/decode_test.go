package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/dbehnke/mbedecode/internal/codec"
	"github.com/dbehnke/mbedecode/internal/driver"
	"github.com/dbehnke/mbedecode/internal/session"
	"github.com/dbehnke/mbedecode/internal/vocoder"
)

func startTestSession(t *testing.T, index string, maxFrames string) *session.Session {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	device, err := driver.NewMBELibDriver(vocoder.Silence{}, logger, nil).BuildFromConfiguration(map[string]string{
		driver.CONFIG_MAX_FRAMES: maxFrames,
	})
	if err != nil {
		t.Fatalf("BuildFromConfiguration() error = %v", err)
	}
	sess, err := device.StartSession(session.Settings{Args: map[string]string{session.ARG_INDEX: index}})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	t.Cleanup(sess.End)
	return sess
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDecodeStream(t *testing.T) {
	tests := []struct {
		name      string
		index     string
		input     int
		maxFrames string
		want      int
	}{
		{"dmr frames", "33", 9 * 50, "8", 50},
		{"imbe frames with trailing bytes", "59", 18*5 + 7, "2", 5},
		{"empty input", "34", 0, "4", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := startTestSession(t, tt.index, tt.maxFrames)

			var out bytes.Buffer
			frames, err := decodeStream(context.Background(), sess, bytes.NewReader(make([]byte, tt.input)), &out, log.New(io.Discard, "", 0))
			if err != nil {
				t.Fatalf("decodeStream() error = %v", err)
			}
			if frames != tt.want {
				t.Errorf("frames = %d, want %d", frames, tt.want)
			}
			if out.Len() != tt.want*codec.AUDIO_BYTES {
				t.Errorf("output = %d bytes, want %d", out.Len(), tt.want*codec.AUDIO_BYTES)
			}
			if got := sess.Stats().FramesOut; got != uint64(tt.want) {
				t.Errorf("Stats().FramesOut = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDecodeStream_WriteError(t *testing.T) {
	sess := startTestSession(t, "33", "2")

	_, err := decodeStream(context.Background(), sess, bytes.NewReader(make([]byte, 9*20)), failingWriter{}, log.New(io.Discard, "", 0))
	if err == nil {
		t.Fatal("decodeStream() succeeded with a failing writer")
	}
}

func TestListenPort(t *testing.T) {
	if port, err := listenPort(":8930"); err != nil || port != 8930 {
		t.Errorf("listenPort(:8930) = %d, %v; want 8930, nil", port, err)
	}
	if _, err := listenPort("localhost"); err == nil {
		t.Error("listenPort(localhost) succeeded, want error")
	}
}
