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

import "math/bits"

// Minify strips insignificant whitespace from JSON text without building a
// tape. String contents pass through byte-for-byte, so minification is
// idempotent and parsing the minified text yields the same tape as parsing
// the original.
//
// Minify does not validate grammar; it only tracks strings and escapes. An
// input ending inside a string returns ErrUnclosedString.
func Minify(src []byte) ([]byte, error) {
	return MinifyTo(src, make([]byte, 0, len(src)))
}

// MinifyTo appends the minified form of src to dst and returns it.
func MinifyTo(src, dst []byte) ([]byte, error) {
	impl := activeImplementation()

	prevIterEndsOddBackslash := uint64(0)
	prevIterInsideQuote := uint64(0)

	var m blockMasks
	var scratch [blockSize]byte

	length := uint64(len(src))
	for idx := uint64(0); idx < length; idx += blockSize {
		var chunk *[blockSize]byte
		n := length - idx
		if n >= blockSize {
			n = blockSize
			chunk = (*[blockSize]byte)(src[idx:])
		} else {
			copy(scratch[:], paddingSpaces)
			copy(scratch[:], src[idx:])
			chunk = &scratch
		}

		impl.buildMasks(chunk, &m)
		oddEnds := findOddBackslashSequences(m.backslash, &prevIterEndsOddBackslash)
		quoteBits := m.rawQuote & ^oddEnds
		quoteMask := prefixXor(quoteBits) ^ prevIterInsideQuote
		prevIterInsideQuote = uint64(int64(quoteMask) >> 63)

		// Whitespace outside strings is dropped; the closing quote is not
		// covered by the quote mask, but it is never whitespace either.
		valid := ^uint64(0)
		if n < blockSize {
			valid = uint64(1)<<n - 1
		}
		drop := m.whitespace & ^quoteMask
		keep := ^drop & valid
		for keep != 0 {
			start := uint64(bits.TrailingZeros64(keep))
			run := uint64(bits.TrailingZeros64(^(keep >> start)))
			dst = append(dst, src[idx+start:idx+start+run]...)
			if start+run >= 64 {
				break
			}
			keep &= ^(1<<(start+run) - 1)
		}
	}

	if prevIterInsideQuote != 0 {
		return nil, parseErrorAt(ErrUnclosedString, length)
	}
	return dst, nil
}
