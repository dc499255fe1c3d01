// Package codec implements the dictionary compressor used to shrink session
// descriptions into short strings a human can copy, paste, or scan as a QR
// code.
//
// The algorithm is LZ78-family: a dictionary of observed phrases is grown by
// one entry per step while scanning the input, and phrases are emitted as
// integer codes whose bit width grows with the dictionary. Compressor and
// decompressor derive the width schedule from the same entry counts, so the
// two stay in lockstep without any framing overhead. The input is treated as
// a sequence of UTF-16 code units, which keeps any Unicode string (including
// characters outside the BMP) exactly round-trippable.
package codec

import (
	"encoding/binary"
	"errors"
	"unicode/utf16"
)

// Reserved codes. Dictionary codes are assigned from firstCode upward.
const (
	codeLiteral8  = 0 // next 8 bits are a raw code unit
	codeLiteral16 = 1 // next 16 bits are a raw code unit
	codeEndOfData = 2
	firstCode     = 3
)

const initialWidth = 2

// ErrMalformed is returned by Decompress when the input is not a valid
// compressed stream (truncated, corrupted, or never produced by Compress).
var ErrMalformed = errors.New("codec: malformed compressed data")

// Phrases are keyed as big-endian 2-byte packed code units. Packing through
// bytes (rather than string([]rune) conversion) keeps lone surrogate halves
// intact as map keys.
func unitKey(u uint16) string {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], u)
	return string(b[:])
}

func firstUnit(phrase string) uint16 {
	return binary.BigEndian.Uint16([]byte(phrase[:2]))
}

// encoder holds the per-call compression state. A fresh value is built for
// every Compress invocation, so concurrent calls never share the dictionary.
type encoder struct {
	w       bitWriter
	dict    map[string]int
	pending map[string]bool // single units seen but not yet emitted as literals
	size    int             // next code to assign
	width   int             // current code width in bits
	enlarge int             // steps remaining before the width grows
}

// step advances the deterministic width schedule by one tick. It must be
// called exactly as often here as in the decoder or the streams desynchronize.
func (e *encoder) step() {
	e.enlarge--
	if e.enlarge == 0 {
		e.enlarge = 1 << e.width
		e.width++
	}
}

// produce emits the code for phrase w: a literal escape the first time a
// single code unit is emitted, a plain dictionary code otherwise.
func (e *encoder) produce(w string) {
	if e.pending[w] {
		u := firstUnit(w)
		if u < 256 {
			e.w.write(codeLiteral8, e.width)
			e.w.write(int(u), 8)
		} else {
			e.w.write(codeLiteral16, e.width)
			e.w.write(int(u), 16)
		}
		e.step()
		delete(e.pending, w)
	} else {
		e.w.write(e.dict[w], e.width)
	}
	e.step()
}

// Compress losslessly encodes input into the transport alphabet. The empty
// string compresses to the empty string. Output is deterministic: the same
// input always yields byte-identical output.
func Compress(input string) string {
	if input == "" {
		return ""
	}

	e := &encoder{
		dict:    make(map[string]int),
		pending: make(map[string]bool),
		size:    firstCode,
		width:   initialWidth,
		enlarge: 2,
	}

	units := utf16.Encode([]rune(input))
	w := ""
	for _, u := range units {
		c := unitKey(u)
		if _, ok := e.dict[c]; !ok {
			e.dict[c] = e.size
			e.size++
			e.pending[c] = true
		}

		wc := w + c
		if _, ok := e.dict[wc]; ok {
			w = wc
			continue
		}
		e.produce(w)
		e.dict[wc] = e.size
		e.size++
		w = c
	}
	if w != "" {
		e.produce(w)
	}

	e.w.write(codeEndOfData, e.width)
	return e.w.flush()
}

// Decompress reverses Compress. It returns ErrMalformed if the input is not
// a valid stream; an empty input decodes to the empty string.
func Decompress(input string) (string, error) {
	if input == "" {
		return "", nil
	}

	r := newBitReader(input)

	// The first code is always a literal escape (or an immediate end marker
	// for pathological inputs); it seeds the dictionary and the window.
	var w string
	switch r.read(initialWidth) {
	case codeLiteral8:
		w = unitKey(uint16(r.read(8)))
	case codeLiteral16:
		w = unitKey(uint16(r.read(16)))
	case codeEndOfData:
		return "", nil
	default:
		return "", ErrMalformed
	}
	if r.bad {
		return "", ErrMalformed
	}

	dict := map[int]string{firstCode: w}
	size := firstCode + 1
	width := initialWidth + 1
	enlarge := 1 << initialWidth
	result := w

	for {
		code := r.read(width)
		if r.bad {
			return "", ErrMalformed
		}

		switch code {
		case codeLiteral8:
			dict[size] = unitKey(uint16(r.read(8)))
			code = size
			size++
			enlarge--
		case codeLiteral16:
			dict[size] = unitKey(uint16(r.read(16)))
			code = size
			size++
			enlarge--
		case codeEndOfData:
			return decodeUnits(result), nil
		}
		if r.bad {
			return "", ErrMalformed
		}
		if enlarge == 0 {
			enlarge = 1 << width
			width++
		}

		// Resolve the code: known phrase, or the one-step-ahead case where
		// the encoder referenced the entry it was about to create.
		var entry string
		if known, ok := dict[code]; ok {
			entry = known
		} else if code == size {
			entry = w + w[:2]
		} else {
			return "", ErrMalformed
		}

		result += entry

		// Mirror the encoder's growth rule: previous phrase plus the first
		// code unit of the current one.
		dict[size] = w + entry[:2]
		size++
		enlarge--
		w = entry
		if enlarge == 0 {
			enlarge = 1 << width
			width++
		}
	}
}

// decodeUnits converts the packed 2-byte phrase representation back to a Go
// string, recombining surrogate pairs.
func decodeUnits(packed string) string {
	units := make([]uint16, len(packed)/2)
	for i := range units {
		units[i] = binary.BigEndian.Uint16([]byte(packed[2*i : 2*i+2]))
	}
	return string(utf16.Decode(units))
}
