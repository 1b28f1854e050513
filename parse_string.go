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

import (
	"encoding/binary"
	"math/bits"
	"unicode/utf8"
)

// Escape expansion for the single-character escapes. Zero means invalid.
var escapeMap = [256]byte{
	'"':  '"',
	'\\': '\\',
	'/':  '/',
	'b':  '\b',
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
}

var hexDigit = [256]int8{}

func init() {
	for i := range hexDigit {
		hexDigit[i] = -1
	}
	for c := '0'; c <= '9'; c++ {
		hexDigit[c] = int8(c - '0')
	}
	for c := 'a'; c <= 'f'; c++ {
		hexDigit[c] = int8(c - 'a' + 10)
	}
	for c := 'A'; c <= 'F'; c++ {
		hexDigit[c] = int8(c - 'A' + 10)
	}
}

// hexToU32 decodes four hex digits. ok is false on any non-hex byte.
func hexToU32(b []byte) (v uint32, ok bool) {
	if len(b) < 4 {
		return 0, false
	}
	d0 := hexDigit[b[0]]
	d1 := hexDigit[b[1]]
	d2 := hexDigit[b[2]]
	d3 := hexDigit[b[3]]
	if d0|d1|d2|d3 < 0 {
		return 0, false
	}
	return uint32(d0)<<12 | uint32(d1)<<8 | uint32(d2)<<4 | uint32(d3), true
}

const (
	highSurrogateMin = 0xd800
	highSurrogateMax = 0xdbff
	lowSurrogateMin  = 0xdc00
	lowSurrogateMax  = 0xdfff
)

// parseString unescapes the string whose opening quote sits at idx and
// appends a record to the string buffer: a 4-byte little-endian length, the
// unescaped bytes, and a NUL terminator. The tape word stores the record
// offset. buf must be the padded input so that 8-byte loads stay in bounds.
//
// Stage 1 guarantees the closing quote exists; unterminated strings never
// reach this point.
func (p *Parser) parseString(buf []byte, idx uint64) ErrorCode {
	doc := &p.doc
	start := len(doc.Strings)
	// length prefix, patched once the closing quote is found
	doc.Strings = append(doc.Strings, 0, 0, 0, 0)

	src := idx + 1
	for {
		// Fast path: copy whole words free of quotes, backslashes and
		// control bytes.
		for src+8 <= uint64(len(buf)) {
			w := binary.LittleEndian.Uint64(buf[src:])
			special := swarEq(w, bcastQuote) | swarEq(w, bcastBackslash) | swarLtCtrl(w)
			if special != 0 {
				n := uint64(bits.TrailingZeros64(special)) / 8
				doc.Strings = append(doc.Strings, buf[src:src+n]...)
				src += n
				break
			}
			doc.Strings = append(doc.Strings, buf[src:src+8]...)
			src += 8
		}

		switch c := buf[src]; {
		case c == '"':
			length := len(doc.Strings) - start - stringLengthSize
			binary.LittleEndian.PutUint32(doc.Strings[start:], uint32(length))
			doc.Strings = append(doc.Strings, 0)
			doc.writeTape(uint64(start), TagString)
			return Success

		case c == '\\':
			escChar := buf[src+1]
			if escChar == 'u' {
				cp, ok := hexToU32(buf[src+2 : src+6])
				if !ok {
					return ErrString
				}
				src += 6
				if cp >= highSurrogateMin && cp <= highSurrogateMax {
					// surrogate pair: the low half must follow immediately
					if buf[src] != '\\' || buf[src+1] != 'u' {
						return ErrString
					}
					low, ok := hexToU32(buf[src+2 : src+6])
					if !ok || low < lowSurrogateMin || low > lowSurrogateMax {
						return ErrString
					}
					src += 6
					cp = ((cp - highSurrogateMin) << 10 | (low - lowSurrogateMin)) + 0x10000
				} else if cp >= lowSurrogateMin && cp <= lowSurrogateMax {
					// a low surrogate on its own is unpairable
					return ErrString
				}
				var tmp [4]byte
				n := utf8.EncodeRune(tmp[:], rune(cp))
				doc.Strings = append(doc.Strings, tmp[:n]...)
			} else {
				unescaped := escapeMap[escChar]
				if unescaped == 0 {
					return ErrString
				}
				doc.Strings = append(doc.Strings, unescaped)
				src += 2
			}

		case c < 0x20:
			return ErrUnescapedChars

		default:
			doc.Strings = append(doc.Strings, c)
			src++
		}
	}
}
