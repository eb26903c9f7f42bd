// Package stream turns raw terminal bytes into text chunks and derives the
// plan-link and question signals from them.
package stream

import (
	"unicode/utf8"
)

// MaxCarry bounds the bytes held back between reads. A valid but incomplete
// UTF-8 sequence never needs more than three.
const MaxCarry = 8

// Decoder converts a byte stream into valid UTF-8 chunks, holding back a
// trailing partial character until the next read completes it.
type Decoder struct {
	carry []byte
}

// Feed appends p to the carried bytes and returns the longest prefix that is
// valid text. Bytes that can never start a valid character are dropped one
// at a time.
func (d *Decoder) Feed(p []byte) string {
	buf := append(d.carry, p...)
	out := make([]byte, 0, len(buf))

	i := 0
	for i < len(buf) {
		if buf[i] < utf8.RuneSelf {
			out = append(out, buf[i])
			i++
			continue
		}
		r, size := utf8.DecodeRune(buf[i:])
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(buf[i:]) {
				break
			}
			i++
			continue
		}
		out = append(out, buf[i:i+size]...)
		i += size
	}

	rest := buf[i:]
	if len(rest) > MaxCarry {
		rest = nil
	}
	d.carry = append(d.carry[:0], rest...)

	return string(out)
}

// Pending reports how many bytes are held back.
func (d *Decoder) Pending() int {
	return len(d.carry)
}
