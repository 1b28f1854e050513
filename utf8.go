/*
 * gigjson, (C) 2021 The gigjson Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package gigjson

// UTF-8 validation runs alongside the structural scan and never re-reads
// input. It is the table-lookup algorithm: each byte is judged from three
// nibbles, the high and low nibble of the previous byte and the high
// nibble of the current byte. A byte is an error iff the three table
// entries share a bit. Sequence-length errors (a 3- or 4-byte lead not
// followed by enough continuation bytes, or continuations out of thin air)
// are caught by comparing expected-continuation positions against the
// TWO_CONTS bit.
//
// Legal UTF-8 byte sequences per RFC 3629:
//
//	Code Points        1st       2nd      3rd      4th
//	U+0000..U+007F     00..7F
//	U+0080..U+07FF     C2..DF   80..BF
//	U+0800..U+0FFF     E0       A0..BF   80..BF
//	U+1000..U+CFFF     E1..EC   80..BF   80..BF
//	U+D000..U+D7FF     ED       80..9F   80..BF
//	U+E000..U+FFFF     EE..EF   80..BF   80..BF
//	U+10000..U+3FFFF   F0       90..BF   80..BF   80..BF
//	U+40000..U+FFFFF   F1..F3   80..BF   80..BF   80..BF
//	U+100000..U+10FFFF F4       80..8F   80..BF   80..BF
const (
	utf8TooShort     = 1 << 0 // lead byte followed by another lead or ASCII
	utf8TooLong      = 1 << 1 // continuation following ASCII or a finished char
	utf8Overlong3    = 1 << 2 // E0 followed by 80..9F
	utf8TooLarge     = 1 << 3 // F4 followed by 90..BF
	utf8Surrogate    = 1 << 4 // ED followed by A0..BF
	utf8Overlong2    = 1 << 5 // C0/C1 lead
	utf8TooLarge1000 = 1 << 6 // F5..FF lead
	utf8Overlong4    = 1 << 6 // F0 followed by 80..8F
	utf8TwoConts     = 1 << 7 // two continuation bytes in a row

	utf8Carry = utf8TooShort | utf8TooLong | utf8TwoConts
)

// Indexed by the high nibble of the previous byte.
var utf8Byte1High = [16]byte{
	// 0_______ (ASCII)
	utf8TooLong, utf8TooLong, utf8TooLong, utf8TooLong,
	utf8TooLong, utf8TooLong, utf8TooLong, utf8TooLong,
	// 10______ (continuation)
	utf8TwoConts, utf8TwoConts, utf8TwoConts, utf8TwoConts,
	// 1100____
	utf8TooShort | utf8Overlong2,
	// 1101____
	utf8TooShort,
	// 1110____
	utf8TooShort | utf8Overlong3 | utf8Surrogate,
	// 1111____
	utf8TooShort | utf8TooLarge | utf8TooLarge1000 | utf8Overlong4,
}

// Indexed by the low nibble of the previous byte.
var utf8Byte1Low = [16]byte{
	utf8Carry | utf8Overlong3 | utf8Overlong2 | utf8Overlong4, // ____0000
	utf8Carry | utf8Overlong2,                                 // ____0001
	utf8Carry, utf8Carry,                                      // ____001_
	utf8Carry | utf8TooLarge,                                  // ____0100
	utf8Carry | utf8TooLarge | utf8TooLarge1000,
	utf8Carry | utf8TooLarge | utf8TooLarge1000,
	utf8Carry | utf8TooLarge | utf8TooLarge1000,
	utf8Carry | utf8TooLarge | utf8TooLarge1000,
	utf8Carry | utf8TooLarge | utf8TooLarge1000,
	utf8Carry | utf8TooLarge | utf8TooLarge1000,
	utf8Carry | utf8TooLarge | utf8TooLarge1000,
	utf8Carry | utf8TooLarge | utf8TooLarge1000,
	utf8Carry | utf8TooLarge | utf8TooLarge1000 | utf8Surrogate, // ____1101
	utf8Carry | utf8TooLarge | utf8TooLarge1000,
	utf8Carry | utf8TooLarge | utf8TooLarge1000,
}

// Indexed by the high nibble of the current byte.
var utf8Byte2High = [16]byte{
	// 0_______ (ASCII)
	utf8TooShort, utf8TooShort, utf8TooShort, utf8TooShort,
	utf8TooShort, utf8TooShort, utf8TooShort, utf8TooShort,
	// 1000____
	utf8TooLong | utf8Overlong2 | utf8TwoConts | utf8Overlong3 | utf8TooLarge1000 | utf8Overlong4,
	// 1001____
	utf8TooLong | utf8Overlong2 | utf8TwoConts | utf8Overlong3 | utf8TooLarge,
	// 101_____
	utf8TooLong | utf8Overlong2 | utf8TwoConts | utf8Surrogate | utf8TooLarge,
	utf8TooLong | utf8Overlong2 | utf8TwoConts | utf8Surrogate | utf8TooLarge,
	// 11______
	utf8TooShort, utf8TooShort, utf8TooShort, utf8TooShort,
}

// utf8Checker validates one block per call, carrying the bytes needed to
// judge characters straddling block boundaries.
type utf8Checker struct {
	// last three bytes of the previous block
	prev1, prev2, prev3 byte
	// nonzero when the previous block ended in an unfinished character
	prevIncomplete byte

	err   bool
	errAt uint64
}

// checkBlock validates the block at absolute offset base. The caller's mask
// set is reused to take the all-ASCII fast path without touching bytes.
func (c *utf8Checker) checkBlock(chunk *[blockSize]byte, m *blockMasks, base uint64) {
	if c.err {
		return
	}
	if m.nonASCII == 0 {
		// ASCII blocks only err if the previous block ended mid-character.
		if c.prevIncomplete != 0 {
			c.fail(base)
			return
		}
		c.prev1, c.prev2, c.prev3 = chunk[blockSize-1], chunk[blockSize-2], chunk[blockSize-3]
		return
	}

	p1, p2, p3 := c.prev1, c.prev2, c.prev3
	for i, b := range chunk {
		special := utf8Byte1High[p1>>4] & utf8Byte1Low[p1&0x0f] & utf8Byte2High[b>>4]

		// A continuation pair is legal only as the 3rd byte of a 3-byte or
		// the 3rd/4th byte of a 4-byte character.
		var must23 byte
		if p2 >= 0xe0 || p3 >= 0xf0 {
			must23 = utf8TwoConts
		}
		if must23^special != 0 {
			c.fail(base + uint64(i))
			return
		}
		p3, p2, p1 = p2, p1, b
	}
	c.prev1, c.prev2, c.prev3 = p1, p2, p3

	c.prevIncomplete = 0
	if c.prev1 >= 0xc0 || c.prev2 >= 0xe0 || c.prev3 >= 0xf0 {
		c.prevIncomplete = 1
	}
}

func (c *utf8Checker) fail(at uint64) {
	c.err = true
	c.errAt = at
}

func (c *utf8Checker) hasError() bool {
	return c.err || c.prevIncomplete != 0
}

// errorOffset returns the offset of the first invalid byte, clamped to the
// input length for characters cut off at EOF.
func (c *utf8Checker) errorOffset(length uint64) uint64 {
	if c.err {
		if c.errAt > length {
			return length
		}
		return c.errAt
	}
	return length
}

// validUTF8 reports whether b is entirely valid UTF-8 using the block
// checker. It is the verdict oracle used by tests.
func validUTF8(b []byte) bool {
	var c utf8Checker
	var m blockMasks
	var scratch [blockSize]byte
	length := uint64(len(b))
	for idx := uint64(0); idx < length; idx += blockSize {
		var chunk *[blockSize]byte
		if length-idx >= blockSize {
			chunk = (*[blockSize]byte)(b[idx:])
		} else {
			scratch = [blockSize]byte{}
			copy(scratch[:], paddingSpaces)
			copy(scratch[:], b[idx:])
			chunk = &scratch
		}
		buildMasksGeneric(chunk, &m)
		c.checkBlock(chunk, &m, idx)
		if c.err {
			return false
		}
	}
	return !c.hasError()
}
