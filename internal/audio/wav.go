// Package audio writes and plays the PCM produced by decode sessions:
// 8kHz, mono, 16 bit little-endian.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/dbehnke/mbedecode/internal/codec"
)

const (
	CHANNELS   = 1
	BIT_DEPTH  = 16
	WAV_FORMAT = 1 // PCM
)

var ErrOddLength = errors.New("audio: PCM length is not a whole number of samples")

// WAVWriter streams decoded frames into a WAV container
type WAVWriter struct {
	encoder *wav.Encoder
	buf     *goaudio.IntBuffer
	samples int
}

// NewWAVWriter starts a WAV stream on ws. The header is finalized by Close.
func NewWAVWriter(ws io.WriteSeeker) *WAVWriter {
	return &WAVWriter{
		encoder: wav.NewEncoder(ws, codec.SAMPLE_RATE, BIT_DEPTH, CHANNELS, WAV_FORMAT),
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: CHANNELS,
				SampleRate:  codec.SAMPLE_RATE,
			},
			SourceBitDepth: BIT_DEPTH,
		},
	}
}

// Write appends little-endian 16 bit PCM
func (w *WAVWriter) Write(pcm []byte) (int, error) {
	if len(pcm)%2 != 0 {
		return 0, ErrOddLength
	}

	n := len(pcm) / 2
	if cap(w.buf.Data) < n {
		w.buf.Data = make([]int, n)
	}
	w.buf.Data = w.buf.Data[:n]
	for i := 0; i < n; i++ {
		w.buf.Data[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	if err := w.encoder.Write(w.buf); err != nil {
		return 0, fmt.Errorf("failed to encode WAV: %w", err)
	}
	w.samples += n
	return len(pcm), nil
}

// Samples returns the number of samples written so far
func (w *WAVWriter) Samples() int {
	return w.samples
}

// Close writes the final chunk sizes
func (w *WAVWriter) Close() error {
	if err := w.encoder.Close(); err != nil {
		return fmt.Errorf("failed to close WAV encoder: %w", err)
	}
	return nil
}

// WriteWAV writes a complete WAV file holding pcm
func WriteWAV(ws io.WriteSeeker, pcm []byte) error {
	w := NewWAVWriter(ws)
	if _, err := w.Write(pcm); err != nil {
		return err
	}
	return w.Close()
}
