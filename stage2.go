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
	"math"
)

// Stage 2 walks the structural index through a small state machine,
// validates the grammar, parses each scalar and writes the tape. Bracket
// matching falls out of the machine: the open word is written with a
// placeholder payload, its position is pushed on the depth stack, and the
// payload is patched when the close word is emitted.

// Scope entries on the depth stack carry the tape position of the open word
// shifted left, with the continuation state in the low bits.
const (
	retAddressShift  = 2
	retAddressStart  = 1
	retAddressObject = 2
	retAddressArray  = 3
)

func (d *Document) currentLoc() uint64 {
	return uint64(len(d.Tape))
}

func (d *Document) writeTape(val uint64, tag Tag) {
	d.Tape = append(d.Tape, val|uint64(tag)<<tapeTagShift)
}

// writeTapeTagVal writes a tag word followed by a raw 64-bit value word.
func (d *Document) writeTapeTagVal(tag Tag, val uint64) {
	d.Tape = append(d.Tape, uint64(tag)<<tapeTagShift, val)
}

func (d *Document) writeTapeInt64(val int64) {
	d.writeTapeTagVal(TagInteger, uint64(val))
}

func (d *Document) writeTapeUint64(val uint64) {
	d.writeTapeTagVal(TagUint, val)
}

func (d *Document) writeTapeDouble(f float64) {
	d.writeTapeTagVal(TagFloat, math.Float64bits(f))
}

func (d *Document) annotatePrevLoc(loc, val uint64) {
	d.Tape[loc] |= val
}

// These are the chars that can follow a true/false/null or number atom
// and nothing else: the four whitespace characters and the six structural
// operators (the padded tail is spaces).
var structuralOrWhitespaceNegated = [256]byte{
	1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 1, 1, 0, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 1, 1, 1, 1,

	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 0, 1, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 0, 1, 1,

	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,

	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}

// isNotStructuralOrWhitespace returns nonzero for a char that cannot
// terminate an atom, zero otherwise.
func isNotStructuralOrWhitespace(c byte) byte {
	return structuralOrWhitespaceNegated[c]
}

// The atom checks read eight bytes at once; the parser guarantees
// inputPadding readable bytes past every structural offset.

func isValidTrueAtom(buf []byte) bool {
	if len(buf) >= 8 {
		const tv = uint64(0x0000000065757274) // "true"
		const mask4 = uint64(0x00000000ffffffff)
		locval := binary.LittleEndian.Uint64(buf)
		errVal := (locval & mask4) ^ tv
		errVal |= uint64(isNotStructuralOrWhitespace(buf[4]))
		return errVal == 0
	}
	return false
}

func isValidFalseAtom(buf []byte) bool {
	if len(buf) >= 8 {
		const fv = uint64(0x00000065736c6166) // "false"
		const mask5 = uint64(0x000000ffffffffff)
		locval := binary.LittleEndian.Uint64(buf)
		errVal := (locval & mask5) ^ fv
		errVal |= uint64(isNotStructuralOrWhitespace(buf[5]))
		return errVal == 0
	}
	return false
}

func isValidNullAtom(buf []byte) bool {
	if len(buf) >= 8 {
		const nv = uint64(0x000000006c6c756e) // "null"
		const mask4 = uint64(0x00000000ffffffff)
		locval := binary.LittleEndian.Uint64(buf)
		errVal := (locval & mask4) ^ nv
		errVal |= uint64(isNotStructuralOrWhitespace(buf[4]))
		return errVal == 0
	}
	return false
}

// buildTape consumes the structural indexes in p.indexes (terminated by the
// length sentinel) and writes the tape and string buffer. buf must carry
// inputPadding readable bytes beyond the document.
func (p *Parser) buildTape(buf []byte) *ParseError {
	doc := &p.doc

	// index into p.indexes; the sentinel is not consumed
	pos := 0
	last := len(p.indexes) - 1

	idx := uint64(0)  // location of the structural character in the input
	done := false     // no structural characters left
	var c byte        // the structural character being looked at
	var offset uint64 // popped scope entry

	errCode := ErrTape
	errIdx := uint64(0)

	scopes := p.scopes[:0]
	defer func() {
		p.scopes = scopes[:0]
	}()

	updateChar := func() bool {
		if pos >= last {
			return false
		}
		idx = uint64(p.indexes[pos])
		pos++
		c = buf[idx]
		return true
	}

	pushScope := func(ret uint64) bool {
		if len(scopes) > p.maxDepth {
			errCode = ErrDepth
			errIdx = idx
			return false
		}
		scopes = append(scopes, doc.currentLoc()<<retAddressShift|ret)
		return true
	}

	popScope := func() uint64 {
		o := scopes[len(scopes)-1]
		scopes = scopes[:len(scopes)-1]
		return o
	}

	////////////////////////////// START STATE /////////////////////////////
	scopes = append(scopes, doc.currentLoc()<<retAddressShift|retAddressStart)
	doc.writeTape(0, TagRoot) // payload is patched to the closing root below

	if done = !updateChar(); done {
		goto succeed
	}

continueRoot:
	switch c {
	case '{':
		if !pushScope(retAddressStart) {
			goto fail
		}
		doc.writeTape(0, TagObjectStart)
		goto objectBegin
	case '[':
		if !pushScope(retAddressStart) {
			goto fail
		}
		doc.writeTape(0, TagArrayStart)
		goto arrayBegin
	case '"':
		if ec := p.parseString(buf, idx); ec != Success {
			errCode, errIdx = ec, idx
			goto fail
		}
		goto startContinue
	case 't':
		if !isValidTrueAtom(buf[idx:]) {
			errCode, errIdx = ErrTrueAtom, idx
			goto fail
		}
		doc.writeTape(0, TagBoolTrue)
		goto startContinue
	case 'f':
		if !isValidFalseAtom(buf[idx:]) {
			errCode, errIdx = ErrFalseAtom, idx
			goto fail
		}
		doc.writeTape(0, TagBoolFalse)
		goto startContinue
	case 'n':
		if !isValidNullAtom(buf[idx:]) {
			errCode, errIdx = ErrNullAtom, idx
			goto fail
		}
		doc.writeTape(0, TagNull)
		goto startContinue
	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '-':
		if ec := parseNumberToTape(buf[idx:], doc); ec != Success {
			errCode, errIdx = ec, idx
			goto fail
		}
		goto startContinue
	default:
		errIdx = idx
		goto fail
	}

startContinue:
	// Back at the top level: either the document ends here, or another
	// root begins in multi-document mode.
	if done = !updateChar(); done {
		goto succeed
	}
	if !p.multiRoot {
		errIdx = idx
		goto fail
	}

	// Close the current root and open the next.
	offset = popScope()
	doc.writeTape(offset>>retAddressShift, TagRoot)
	doc.annotatePrevLoc(offset>>retAddressShift, doc.currentLoc()-1)

	scopes = append(scopes, doc.currentLoc()<<retAddressShift|retAddressStart)
	doc.writeTape(0, TagRoot)
	goto continueRoot

	//////////////////////////////// OBJECT STATES /////////////////////////////

objectBegin:
	if done = !updateChar(); done {
		goto failEOF
	}
	switch c {
	case '"':
		if ec := p.parseString(buf, idx); ec != Success {
			errCode, errIdx = ec, idx
			goto fail
		}
		goto objectKeyState
	case '}':
		goto scopeEnd // could also go to objectContinue
	default:
		errIdx = idx
		goto fail
	}

objectKeyState:
	if done = !updateChar(); done {
		goto failEOF
	}
	if c != ':' {
		errIdx = idx
		goto fail
	}
	if done = !updateChar(); done {
		goto failEOF
	}
	switch c {
	case '"':
		if ec := p.parseString(buf, idx); ec != Success {
			errCode, errIdx = ec, idx
			goto fail
		}

	case 't':
		if !isValidTrueAtom(buf[idx:]) {
			errCode, errIdx = ErrTrueAtom, idx
			goto fail
		}
		doc.writeTape(0, TagBoolTrue)

	case 'f':
		if !isValidFalseAtom(buf[idx:]) {
			errCode, errIdx = ErrFalseAtom, idx
			goto fail
		}
		doc.writeTape(0, TagBoolFalse)

	case 'n':
		if !isValidNullAtom(buf[idx:]) {
			errCode, errIdx = ErrNullAtom, idx
			goto fail
		}
		doc.writeTape(0, TagNull)

	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '-':
		if ec := parseNumberToTape(buf[idx:], doc); ec != Success {
			errCode, errIdx = ec, idx
			goto fail
		}

	case '{':
		if !pushScope(retAddressObject) {
			goto fail
		}
		doc.writeTape(0, TagObjectStart)
		// we have not yet encountered } so we need to come back for it
		goto objectBegin

	case '[':
		if !pushScope(retAddressObject) {
			goto fail
		}
		doc.writeTape(0, TagArrayStart)
		// we have not yet encountered ] so we need to come back for it
		goto arrayBegin

	default:
		errIdx = idx
		goto fail
	}

objectContinue:
	if done = !updateChar(); done {
		goto failEOF
	}
	switch c {
	case ',':
		if done = !updateChar(); done {
			goto failEOF
		}
		if c != '"' {
			errIdx = idx
			goto fail
		}
		if ec := p.parseString(buf, idx); ec != Success {
			errCode, errIdx = ec, idx
			goto fail
		}
		goto objectKeyState

	case '}':
		goto scopeEnd

	default:
		errIdx = idx
		goto fail
	}

	////////////////////////////// COMMON STATE /////////////////////////////
scopeEnd:
	// Write the close word pointing back at the open word and patch the
	// open word to point at the close.
	offset = popScope()
	doc.writeTape(offset>>retAddressShift, Tag(c))
	doc.annotatePrevLoc(offset>>retAddressShift, doc.currentLoc()-1)

	switch offset & (1<<retAddressShift - 1) {
	case retAddressArray:
		goto arrayContinue
	case retAddressObject:
		goto objectContinue
	default:
		goto startContinue
	}

	////////////////////////////// ARRAY STATES /////////////////////////////
arrayBegin:
	if done = !updateChar(); done {
		goto failEOF
	}
	if c == ']' {
		goto scopeEnd // could also go to arrayContinue
	}

mainArraySwitch:
	// we call updateChar on all paths in, so we can peek at c on the
	// paths that can accept a close square brace (post-comma and at start)
	switch c {
	case '"':
		if ec := p.parseString(buf, idx); ec != Success {
			errCode, errIdx = ec, idx
			goto fail
		}
	case 't':
		if !isValidTrueAtom(buf[idx:]) {
			errCode, errIdx = ErrTrueAtom, idx
			goto fail
		}
		doc.writeTape(0, TagBoolTrue)

	case 'f':
		if !isValidFalseAtom(buf[idx:]) {
			errCode, errIdx = ErrFalseAtom, idx
			goto fail
		}
		doc.writeTape(0, TagBoolFalse)

	case 'n':
		if !isValidNullAtom(buf[idx:]) {
			errCode, errIdx = ErrNullAtom, idx
			goto fail
		}
		doc.writeTape(0, TagNull)

	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '-':
		if ec := parseNumberToTape(buf[idx:], doc); ec != Success {
			errCode, errIdx = ec, idx
			goto fail
		}

	case '{':
		// we have not yet encountered } so we need to come back for it
		if !pushScope(retAddressArray) {
			goto fail
		}
		doc.writeTape(0, TagObjectStart)
		goto objectBegin

	case '[':
		// we have not yet encountered ] so we need to come back for it
		if !pushScope(retAddressArray) {
			goto fail
		}
		doc.writeTape(0, TagArrayStart)
		goto arrayBegin

	default:
		errIdx = idx
		goto fail
	}

arrayContinue:
	if done = !updateChar(); done {
		goto failEOF
	}
	switch c {
	case ',':
		if done = !updateChar(); done {
			goto failEOF
		}
		goto mainArraySwitch

	case ']':
		goto scopeEnd

	default:
		errIdx = idx
		goto fail
	}

	////////////////////////////// FINAL STATES /////////////////////////////
succeed:
	offset = popScope()
	if len(scopes) != 0 {
		errIdx = idx
		goto fail
	}
	doc.writeTape(offset>>retAddressShift, TagRoot)
	doc.annotatePrevLoc(offset>>retAddressShift, doc.currentLoc()-1)
	return nil

failEOF:
	// the structural characters ran out inside an open scope
	errIdx = uint64(p.indexes[last])
	return parseErrorAt(errCode, errIdx)

fail:
	return parseErrorAt(errCode, errIdx)
}
