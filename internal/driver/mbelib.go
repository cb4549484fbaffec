package driver

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/dbehnke/mbedecode/internal/session"
	"github.com/dbehnke/mbedecode/internal/vocoder"
)

const (
	MBELIB_IDENTIFIER = "mbelib"
	CONFIG_UNVOICED   = "unvoiced_quality"
	CONFIG_DEBUG      = "debug"
	CONFIG_MAX_FRAMES = "max_queued_frames"
	CODEC_AMBE        = "ambe"
)

// MBELibDriver builds software AMBE/IMBE decoder devices
type MBELibDriver struct {
	synth    vocoder.Synthesizer
	logger   *log.Logger
	observer session.Observer
}

// NewMBELibDriver creates the driver. A nil synth selects vocoder.Default.
func NewMBELibDriver(synth vocoder.Synthesizer, logger *log.Logger, observer session.Observer) *MBELibDriver {
	if synth == nil {
		synth = vocoder.Default()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &MBELibDriver{synth: synth, logger: logger, observer: observer}
}

// Identifier implements Driver
func (d *MBELibDriver) Identifier() string {
	return MBELIB_IDENTIFIER
}

// BuildFromConfiguration reads unvoiced_quality (default 1) and the
// optional debug and max_queued_frames keys
func (d *MBELibDriver) BuildFromConfiguration(config map[string]string) (Device, error) {
	opts := session.Options{
		Quality:  vocoder.DEFAULT_UNVOICED_QUALITY,
		Logger:   d.logger,
		Observer: d.observer,
	}

	if v, ok := config[CONFIG_UNVOICED]; ok {
		q, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("mbelib: cannot parse %s %q: %w", CONFIG_UNVOICED, v, err)
		}
		opts.Quality = int(q)
	}
	if v, ok := config[CONFIG_DEBUG]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("mbelib: cannot parse %s %q: %w", CONFIG_DEBUG, v, err)
		}
		opts.Debug = b
	}
	if v, ok := config[CONFIG_MAX_FRAMES]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("mbelib: invalid %s %q", CONFIG_MAX_FRAMES, v)
		}
		opts.MaxFrames = n
	}

	d.logger.Printf("mbelib device: synthesizer=%s unvoiced_quality=%d", d.synth.Name(), opts.Quality)
	return &MBELibDevice{synth: d.synth, opts: opts}, nil
}

// MBELibDevice starts sessions sharing one synthesizer and one set of options
type MBELibDevice struct {
	synth vocoder.Synthesizer
	opts  session.Options
}

// Codecs implements Device
func (d *MBELibDevice) Codecs() []string {
	return []string{CODEC_AMBE}
}

// Quality returns the unvoiced quality handed to every session
func (d *MBELibDevice) Quality() int {
	return d.opts.Quality
}

// StartSession creates a session and negotiates it with settings. A
// session that fails to negotiate is ended before the error is returned.
func (d *MBELibDevice) StartSession(settings session.Settings) (*session.Session, error) {
	s, err := session.New(d.synth, d.opts)
	if err != nil {
		return nil, err
	}

	if err := s.Renegotiate(settings); err != nil {
		s.End()
		return nil, err
	}

	d.opts.Logger.Printf("Starting new session %s (%s)", s.ID(), s.Mode())
	return s, nil
}
