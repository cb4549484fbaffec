//go:build mbelib

package vocoder

/*
#cgo LDFLAGS: -lmbe -lm

#include <stdlib.h>
#include <string.h>
#include <mbelib.h>

typedef struct {
    mbe_parms cur;
    mbe_parms prev;
    mbe_parms prev_enhanced;
} mbe_state;

static mbe_state *mbe_state_new(void) {
    mbe_state *st = (mbe_state *) malloc(sizeof(mbe_state));
    if (st != NULL) {
        mbe_initMbeParms(&st->cur, &st->prev, &st->prev_enhanced);
    }
    return st;
}

static void mbe_state_reset(mbe_state *st) {
    mbe_initMbeParms(&st->cur, &st->prev, &st->prev_enhanced);
}

static void mbe_ambe3600x2400(mbe_state *st, short *pcm, int *errs, int *errs2, char *err_str,
                              unsigned char *planes, unsigned char *data, int quality) {
    mbe_processAmbe3600x2400Frame(pcm, errs, errs2, err_str, (char (*)[24]) planes, (char *) data,
                                  &st->cur, &st->prev, &st->prev_enhanced, quality);
}

static void mbe_ambe3600x2450(mbe_state *st, short *pcm, int *errs, int *errs2, char *err_str,
                              unsigned char *planes, unsigned char *data, int quality) {
    mbe_processAmbe3600x2450Frame(pcm, errs, errs2, err_str, (char (*)[24]) planes, (char *) data,
                                  &st->cur, &st->prev, &st->prev_enhanced, quality);
}

static void mbe_ambe2450(mbe_state *st, short *pcm, int *errs, int *errs2, char *err_str,
                         unsigned char *data, int quality) {
    mbe_processAmbe2450Data(pcm, errs, errs2, err_str, (char *) data,
                            &st->cur, &st->prev, &st->prev_enhanced, quality);
}

static void mbe_imbe4400(mbe_state *st, short *pcm, int *errs, int *errs2, char *err_str,
                         unsigned char *data, int quality) {
    mbe_processImbe4400Data(pcm, errs, errs2, err_str, (char *) data,
                            &st->cur, &st->prev, &st->prev_enhanced, quality);
}
*/
import "C"

import (
	"errors"
	"unsafe"

	"github.com/dbehnke/mbedecode/internal/codec"
)

const mbeErrStrLen = 64

var errOutOfMemory = errors.New("vocoder: cannot allocate mbelib state")

// MBELib reconstructs speech with libmbe
type MBELib struct{}

// NewMBELib returns the libmbe synthesizer
func NewMBELib() (Synthesizer, error) {
	return MBELib{}, nil
}

type mbeState struct {
	ptr *C.mbe_state
}

func (s *mbeState) Reset() {
	if s.ptr != nil {
		C.mbe_state_reset(s.ptr)
	}
}

func (s *mbeState) Close() error {
	if s.ptr != nil {
		C.free(unsafe.Pointer(s.ptr))
		s.ptr = nil
	}
	return nil
}

// Name implements Synthesizer
func (MBELib) Name() string { return "mbelib" }

// NewState allocates the current, previous and enhanced-previous parameter
// blocks in C memory
func (MBELib) NewState() (State, error) {
	ptr := C.mbe_state_new()
	if ptr == nil {
		return nil, errOutOfMemory
	}
	return &mbeState{ptr: ptr}, nil
}

// Synthesize runs the libmbe decoder matching bits.Mode
func (MBELib) Synthesize(bits *codec.VoiceBits, st State, quality int, pcm []int16) Report {
	ms, ok := st.(*mbeState)
	if !ok || ms.ptr == nil {
		return Report{Diagnostic: ErrForeignState.Error()}
	}
	if len(pcm) < codec.AUDIO_SAMPLES {
		return Report{Diagnostic: "short pcm buffer"}
	}

	var out [codec.AUDIO_SAMPLES]C.short
	var errs, errs2 C.int
	var errStr [mbeErrStrLen]C.char

	planes := (*C.uchar)(unsafe.Pointer(&bits.Planes[0][0]))
	data := (*C.uchar)(unsafe.Pointer(&bits.Data[0]))
	q := C.int(ClampQuality(quality))

	switch bits.Mode {
	case codec.ModeAmbe3600x2400:
		C.mbe_ambe3600x2400(ms.ptr, &out[0], &errs, &errs2, &errStr[0], planes, data, q)
	case codec.ModeAmbe3600x2450:
		C.mbe_ambe3600x2450(ms.ptr, &out[0], &errs, &errs2, &errStr[0], planes, data, q)
	case codec.ModeAmbe2450:
		C.mbe_ambe2450(ms.ptr, &out[0], &errs, &errs2, &errStr[0], data, q)
	case codec.ModeImbe7200x4400:
		C.mbe_imbe4400(ms.ptr, &out[0], &errs, &errs2, &errStr[0], data, q)
	default:
		clear(pcm[:codec.AUDIO_SAMPLES])
		return Report{Diagnostic: codec.ErrUnknownMode.Error()}
	}

	for i := range out {
		pcm[i] = int16(out[i])
	}

	return Report{
		Errors:     int(errs),
		Errors2:    int(errs2),
		Diagnostic: C.GoString(&errStr[0]),
	}
}
