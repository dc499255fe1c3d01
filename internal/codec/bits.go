package codec

// symbolBits is the number of payload bits carried by one output character.
// The 64-symbol alphabet makes the compressed text safe for copy-paste, URLs
// and QR alphanumeric-dense payloads alike.
const symbolBits = 6

// alphabet is the fixed 64-character output alphabet. It is shaped like
// base64 (including the '=' padding) but the bit stream inside is this
// codec's own format — a generic base64 decoder cannot read it.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// bitWriter packs variable-width integer codes into 6-bit output symbols.
// Code bits are consumed LSB-first and fill each symbol MSB-first, so the
// symbol boundary never depends on the code width in effect.
type bitWriter struct {
	val int // partial symbol being filled
	pos int // bits filled in val
	out []byte
}

// write appends the low `bits` bits of value to the stream.
func (w *bitWriter) write(value, bits int) {
	for i := 0; i < bits; i++ {
		w.val = w.val<<1 | value&1
		value >>= 1
		w.pos++
		if w.pos == symbolBits {
			w.out = append(w.out, alphabet[w.val])
			w.val, w.pos = 0, 0
		}
	}
}

// flush zero-pads the partial symbol, then pads the text with '=' to a
// multiple of 4 characters, matching base64 framing conventions.
func (w *bitWriter) flush() string {
	if w.pos > 0 {
		w.out = append(w.out, alphabet[w.val<<(symbolBits-w.pos)])
		w.val, w.pos = 0, 0
	}
	for len(w.out)%4 != 0 {
		w.out = append(w.out, '=')
	}
	return string(w.out)
}

// symbolValues maps an alphabet character back to its 6-bit value. Built once
// at init; '=' padding decodes as zero bits so a reader that strays into the
// padding sees a well-defined (and necessarily invalid) tail.
var symbolValues = func() [256]int8 {
	var m [256]int8
	for i := range m {
		m[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		m[alphabet[i]] = int8(i)
	}
	m['='] = 0
	return m
}()

// bitReader is the inverse of bitWriter: it unpacks variable-width codes from
// the 6-bit symbol stream.
type bitReader struct {
	data  string
	index int
	val   int
	mask  int // current bit position within val, MSB first
	bad   bool
}

func newBitReader(data string) *bitReader {
	return &bitReader{data: data}
}

// read extracts the next `bits` bits as an integer, assembling them
// LSB-first. Running off the end of the data or hitting a character outside
// the alphabet marks the reader as bad; subsequent reads return 0.
func (r *bitReader) read(bits int) int {
	value := 0
	for i := 0; i < bits; i++ {
		if r.mask == 0 {
			if r.index >= len(r.data) {
				r.bad = true
				return 0
			}
			v := symbolValues[r.data[r.index]]
			if v < 0 {
				r.bad = true
				return 0
			}
			r.val = int(v)
			r.mask = 1 << (symbolBits - 1)
			r.index++
		}
		if r.val&r.mask != 0 {
			value |= 1 << i
		}
		r.mask >>= 1
	}
	return value
}
