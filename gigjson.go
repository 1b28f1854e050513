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

// Package gigjson is a two-stage JSON parser built for throughput: stage 1
// scans the input in 64-byte blocks and produces a structural index while
// validating UTF-8, stage 2 walks that index and emits a flat tape that can
// be traversed without re-reading the input.
//
// The simplest entry point parses a buffer and hands back a document:
//
//	doc, err := gigjson.Parse(jsonBytes, nil)
//
// Passing a previously returned document as the second argument reuses its
// buffers. For full control over allocation, create a Parser, size it once
// with Allocate, and reuse it for every message.
package gigjson

// DefaultMaxDepth is the container nesting limit applied when no explicit
// depth is configured.
const DefaultMaxDepth = 1024

// ParserOption configures a Parser.
type ParserOption func(p *Parser) error

// WithCapacity limits the document size the parser accepts. Inputs larger
// than the capacity fail with ErrCapacity instead of growing the parser's
// buffers. A capacity of 0 accepts anything up to the 4 GiB offset limit.
func WithCapacity(capacity int) ParserOption {
	return func(p *Parser) error {
		if capacity < 0 || int64(capacity) > maxInputSize {
			return ErrCapacity
		}
		p.capacity = capacity
		return nil
	}
}

// WithMaxDepth overrides the maximum container nesting depth. Documents
// nesting deeper fail with ErrDepth. The limit is never clamped silently.
func WithMaxDepth(depth int) ParserOption {
	return func(p *Parser) error {
		if depth <= 0 {
			return ErrDepth
		}
		p.maxDepth = depth
		return nil
	}
}

// WithImplementation pins this parser to a named backend instead of the
// process-wide selection. Both tier names ("avx2", "fallback") and CPU code
// names ("haswell", "westmere") are accepted; it fails if the backend is
// unknown or unsupported on this host. SetImplementation changes the
// process-wide default without affecting pinned parsers.
func WithImplementation(name string) ParserOption {
	return func(p *Parser) error {
		impl, err := implementationByName(name)
		if err != nil {
			return err
		}
		p.impl = impl
		p.implPinned = true
		return nil
	}
}

// Parser owns all scratch needed to parse one document at a time: the
// structural index, the tape, the string buffer and the depth stack. The
// buffers are reused across parses, so a parser that has processed a large
// message parses subsequent messages without allocating.
//
// A Parser is not safe for concurrent use. Documents returned by the Parse
// method borrow the parser's buffers and are invalidated by the next parse.
type Parser struct {
	impl *implementation
	// implPinned keeps a WithImplementation choice across parses.
	implPinned bool
	capacity   int
	maxDepth   int

	// multiRoot permits several whitespace-separated documents in one
	// buffer, each wrapped in its own root pair on the tape.
	multiRoot bool

	// padded copy of the message being parsed
	buf []byte
	// structural offsets plus the length sentinel
	indexes []uint32
	// depth stack of open containers
	scopes []uint64

	doc Document
}

// NewParser creates a parser with default limits.
func NewParser(opts ...ParserOption) (*Parser, error) {
	p := &Parser{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Allocate presizes the parser for documents up to capacity bytes with the
// given maximum depth, so that parsing stays allocation-free. A maxDepth of
// 0 keeps the current depth limit.
func (p *Parser) Allocate(capacity, maxDepth int) error {
	if capacity < 0 || int64(capacity) > maxInputSize {
		return ErrCapacity
	}
	if maxDepth < 0 {
		return ErrDepth
	}
	if maxDepth > 0 {
		p.maxDepth = maxDepth
	}
	p.capacity = capacity

	if cap(p.buf) < capacity+inputPadding {
		p.buf = make([]byte, 0, capacity+inputPadding)
	}
	// Structural density above one in two characters is rare outside
	// pathological input; the index still grows to worst case on demand.
	if indexEstimate := capacity/2 + 64; cap(p.indexes) < indexEstimate {
		p.indexes = make([]uint32, 0, indexEstimate)
	}
	if tapeEstimate := capacity + 2; cap(p.doc.Tape) < tapeEstimate {
		p.doc.Tape = make([]uint64, 0, tapeEstimate)
	}
	if stringsEstimate := capacity + 64; cap(p.doc.Strings) < stringsEstimate {
		p.doc.Strings = make([]byte, 0, stringsEstimate)
	}
	if cap(p.scopes) < p.maxDepth+1 {
		p.scopes = make([]uint64, 0, p.maxDepth+1)
	}
	return nil
}

// MaxDepth returns the configured container nesting limit.
func (p *Parser) MaxDepth() int {
	return p.maxDepth
}

// Parse parses a single JSON document. The returned document borrows the
// parser's buffers and stays valid until the next call on this parser.
func (p *Parser) Parse(b []byte) (*Document, error) {
	p.multiRoot = false
	return p.parseMessage(b)
}

// ParseND parses newline-delimited JSON: any number of complete documents
// separated by whitespace. Each document is wrapped in its own root pair on
// the resulting tape.
func (p *Parser) ParseND(b []byte) (*Document, error) {
	p.multiRoot = true
	return p.parseMessage(b)
}

func (p *Parser) parseMessage(b []byte) (*Document, error) {
	if len(b) == 0 {
		return nil, parseErrorAt(ErrEmpty, 0)
	}
	if int64(len(b)) > maxInputSize {
		return nil, parseErrorAt(ErrCapacity, 0)
	}
	if p.capacity > 0 && len(b) > p.capacity {
		return nil, parseErrorAt(ErrCapacity, 0)
	}
	if !p.implPinned {
		p.impl = activeImplementation()
	}
	if p.maxDepth == 0 {
		p.maxDepth = DefaultMaxDepth
	}

	// Stage the message into a padded copy so the scalar parsers may read a
	// full block beyond any structural offset.
	p.buf = append(p.buf[:0], b...)
	p.buf = append(p.buf, paddingSpaces...)
	msg := p.buf[:len(b)]

	p.doc.Tape = p.doc.Tape[:0]
	p.doc.Strings = p.doc.Strings[:0]
	p.doc.Message = msg
	p.doc.internal = nil

	if perr := p.findStructuralIndices(msg); perr != nil {
		return nil, perr
	}
	if perr := p.buildTape(p.buf); perr != nil {
		return nil, perr
	}
	return &p.doc, nil
}

// Parse a block of data and return the parsed JSON.
// An optional previously parsed document can be supplied to reuse its
// buffers, and with them the parser behind it.
func Parse(b []byte, reuse *Document, opts ...ParserOption) (*Document, error) {
	p, err := parserFor(reuse, opts...)
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(b)
	if err != nil {
		return nil, err
	}
	return detach(p, doc), nil
}

// ParseND parses newline-delimited JSON.
// An optional previously parsed document can be supplied to reuse its
// buffers.
func ParseND(b []byte, reuse *Document, opts ...ParserOption) (*Document, error) {
	p, err := parserFor(reuse, opts...)
	if err != nil {
		return nil, err
	}
	doc, err := p.ParseND(b)
	if err != nil {
		return nil, err
	}
	return detach(p, doc), nil
}

func parserFor(reuse *Document, opts ...ParserOption) (*Parser, error) {
	if reuse != nil && reuse.internal != nil {
		p := reuse.internal
		// hand the document's buffers back to the parser
		p.doc = *reuse
		p.doc.internal = nil
		*reuse = Document{}
		for _, opt := range opts {
			if err := opt(p); err != nil {
				return nil, err
			}
		}
		return p, nil
	}
	return NewParser(opts...)
}

// detach moves the parsed buffers out of the parser and into a standalone
// document that keeps the parser alive for reuse.
func detach(p *Parser, doc *Document) *Document {
	d := &Document{}
	*d = *doc
	p.doc = Document{}
	d.internal = p
	return d
}
