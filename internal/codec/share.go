package codec

// ShareTag is the one-character format marker prepended to compressed
// payloads. Text without the tag is treated as legacy plain JSON, so older
// peers and hand-typed payloads keep working.
const ShareTag = '#'

// EncodeForShare compresses s and prefixes the format tag, producing the
// string that is actually copied, pasted, or rendered as a QR code.
func EncodeForShare(s string) string {
	return string(ShareTag) + Compress(s)
}

// DecodeShared reverses EncodeForShare. Untagged input is returned unchanged
// (the backward-compatibility fallback, not an error); tagged input that
// fails to decompress reports ErrMalformed.
func DecodeShared(s string) (string, error) {
	if len(s) == 0 || s[0] != ShareTag {
		return s, nil
	}
	return Decompress(s[1:])
}
