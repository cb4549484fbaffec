package audio

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func pcmRamp(n int) []byte {
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(i*100-8000)))
	}
	return pcm
}

func TestWAVWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	w := NewWAVWriter(f)
	for i := 0; i < 3; i++ {
		if _, err := w.Write(pcmRamp(160)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if w.Samples() != 480 {
		t.Errorf("Samples() = %d, want 480", w.Samples())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	f.Close()

	f, err = os.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer() error = %v", err)
	}

	if dec.SampleRate != 8000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("format = %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if len(buf.Data) != 480 {
		t.Fatalf("decoded %d samples, want 480", len(buf.Data))
	}
	for i, v := range buf.Data[:160] {
		if want := i*100 - 8000; v != want {
			t.Fatalf("sample %d = %d, want %d", i, v, want)
		}
	}
}

func TestWAVWriter_OddLength(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "odd.wav"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Close()

	if _, err := NewWAVWriter(f).Write([]byte{1, 2, 3}); !errors.Is(err, ErrOddLength) {
		t.Errorf("Write() error = %v, want ErrOddLength", err)
	}
}

func TestWriteWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := WriteWAV(f, pcmRamp(160)); err != nil {
		t.Fatalf("WriteWAV() error = %v", err)
	}
	f.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	// 44 byte header + 320 bytes of data
	if info.Size() != 44+320 {
		t.Errorf("file size = %d, want %d", info.Size(), 44+320)
	}
}
