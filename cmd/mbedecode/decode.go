package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dbehnke/mbedecode/internal/audio"
	"github.com/dbehnke/mbedecode/internal/codec"
	"github.com/dbehnke/mbedecode/internal/driver"
	"github.com/dbehnke/mbedecode/internal/session"
	"github.com/dbehnke/mbedecode/internal/vocoder"
)

const READ_CHUNK = 4096

func runDecode(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	index := fs.Int("index", -1, "Rate index (33, 34 or 59)")
	ratep := fs.String("ratep", "", "Rate descriptor, six colon separated 4 digit hex fields")
	in := fs.String("in", "-", "Input file of concatenated frames, - for stdin")
	out := fs.String("out", "", "Output WAV file")
	play := fs.Bool("play", false, "Play decoded audio")
	quality := fs.Int("quality", vocoder.DEFAULT_UNVOICED_QUALITY, "Unvoiced quality (1-64)")
	debug := fs.Bool("debug", false, "Log per-frame decoder diagnostics")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *out == "" && !*play {
		return errors.New("nothing to do: give -out, -play or both")
	}

	settings := session.Settings{
		Directions: []session.Direction{session.DirectionDecode},
		Args:       map[string]string{},
	}
	if *index >= 0 {
		settings.Args[session.ARG_INDEX] = strconv.Itoa(*index)
	}
	if *ratep != "" {
		settings.Args[session.ARG_RATEP] = *ratep
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	device, err := driver.NewMBELibDriver(vocoder.Default(), logger, nil).BuildFromConfiguration(map[string]string{
		driver.CONFIG_UNVOICED: strconv.Itoa(*quality),
		driver.CONFIG_DEBUG:    strconv.FormatBool(*debug),
	})
	if err != nil {
		return err
	}

	sess, err := device.StartSession(settings)
	if err != nil {
		return err
	}
	defer sess.End()

	var input io.Reader = os.Stdin
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer f.Close()
		input = f
	}

	var sinks []io.Writer
	var wavFile *os.File
	var wavWriter *audio.WAVWriter
	if *out != "" {
		wavFile, err = os.Create(*out)
		if err != nil {
			return err
		}
		defer wavFile.Close()
		wavWriter = audio.NewWAVWriter(wavFile)
		sinks = append(sinks, wavWriter)
	}
	var player *audio.Player
	if *play {
		player, err = audio.NewPlayer(logger)
		if err != nil {
			return err
		}
		defer player.Close()
		sinks = append(sinks, player)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	frames, err := decodeStream(ctx, sess, bufio.NewReader(input), io.MultiWriter(sinks...), logger)
	if err != nil {
		return err
	}

	if wavWriter != nil {
		if err := wavWriter.Close(); err != nil {
			return err
		}
	}

	stats := sess.Stats()
	logger.Printf("Decoded %d %s frames (%d errors, %d errors2)", frames, stats.Mode, stats.Errors, stats.Errors2)
	return nil
}

// decodeStream feeds r into sess from a producer goroutine and writes
// each decoded PCM frame to w. It returns once every whole frame in r has
// been written. A trailing partial frame is dropped.
func decodeStream(ctx context.Context, sess *session.Session, r io.Reader, w io.Writer, logger *log.Logger) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// drained is cancelled at end of input; Read keeps returning queued
	// frames and fails only once the queue is empty
	drained, markDrained := context.WithCancel(ctx)
	defer markDrained()

	produced := make(chan error, 1)
	go func() {
		defer markDrained()

		buf := make([]byte, READ_CHUNK)
		var total int
		for {
			n, err := r.Read(buf)
			if n > 0 {
				total += n
				if err := sess.Decode(ctx, buf[:n]); err != nil {
					produced <- err
					return
				}
			}
			if err == io.EOF {
				if rest := total % sess.Framing().ChannelBytes; rest != 0 {
					logger.Printf("Dropping %d trailing bytes (not a whole frame)", rest)
				}
				produced <- nil
				return
			}
			if err != nil {
				produced <- fmt.Errorf("reading input: %w", err)
				return
			}
		}
	}()

	pcm := make([]byte, codec.AUDIO_BYTES)
	frames := 0
	for {
		n, err := sess.Read(drained, pcm)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() == nil {
				break
			}
			cancel()
			<-produced
			return frames, err
		}
		if _, err := w.Write(pcm[:n]); err != nil {
			cancel()
			<-produced
			return frames, fmt.Errorf("writing audio: %w", err)
		}
		frames++
	}

	return frames, <-produced
}
