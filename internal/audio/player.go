package audio

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/dbehnke/mbedecode/internal/codec"
)

// Player plays decoded PCM on the default output device
type Player struct {
	ctx    *oto.Context
	player *oto.Player
	pw     *io.PipeWriter

	closeOnce sync.Once
}

// NewPlayer opens the audio device. Only one Player may exist per process.
func NewPlayer(logger *log.Logger) (*Player, error) {
	if logger == nil {
		logger = log.Default()
	}

	op := &oto.NewContextOptions{
		SampleRate:   codec.SAMPLE_RATE,
		ChannelCount: CHANNELS,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	pr, pw := io.Pipe()
	player := ctx.NewPlayer(pr)
	player.Play()

	logger.Printf("Audio output initialized: %dHz, %d channels", codec.SAMPLE_RATE, CHANNELS)

	return &Player{ctx: ctx, player: player, pw: pw}, nil
}

// Write queues little-endian 16 bit PCM for playback, blocking while the
// device catches up
func (p *Player) Write(pcm []byte) (int, error) {
	return p.pw.Write(pcm)
}

// Close stops playback after the queued audio has been consumed
func (p *Player) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.pw.Close()
		err = p.player.Close()
	})
	return err
}
