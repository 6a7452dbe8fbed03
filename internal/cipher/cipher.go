// Package cipher implements the reversible letter-shift transform applied to
// message content before it is stored. It is an obfuscation stage, not a
// security boundary: it only keeps plaintext out of the database at rest.
package cipher

// Shift rotates ASCII letters by a fixed offset, preserving case. Non-letter
// bytes (digits, punctuation, spaces, multi-byte UTF-8 sequences) pass through
// untouched, so Decrypt(Encrypt(x)) == x for any input string.
type Shift struct {
	offset int
}

const alphabet = 26

// DefaultOffset matches the historical on-disk format; changing it makes
// previously stored content unreadable.
const DefaultOffset = 7

func New(offset int) *Shift {
	offset %= alphabet
	if offset < 0 {
		offset += alphabet
	}
	return &Shift{offset: offset}
}

// Encrypt transforms plaintext into its stored representation. It is total:
// it never fails and never alters non-letter bytes.
func (s *Shift) Encrypt(plaintext string) string {
	return rotate(plaintext, s.offset)
}

// Decrypt reverses Encrypt. Content that was never encrypted (no ASCII
// letters) comes back unchanged.
func (s *Shift) Decrypt(ciphertext string) string {
	return rotate(ciphertext, alphabet-s.offset)
}

func rotate(in string, offset int) string {
	if offset%alphabet == 0 {
		return in
	}
	out := []byte(in)
	changed := false
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case c >= 'a' && c <= 'z':
			out[i] = 'a' + byte((int(c-'a')+offset)%alphabet)
			changed = true
		case c >= 'A' && c <= 'Z':
			out[i] = 'A' + byte((int(c-'A')+offset)%alphabet)
			changed = true
		}
	}
	if !changed {
		return in
	}
	return string(out)
}
