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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the stage 1 window used by ParseStream when the
// caller passes no explicit batch size.
const DefaultBatchSize = 1 << 20

// lastCompleteDocOffset walks the structural indexes of a window and
// returns the offset one past the last complete top-level document, or -1
// if no document completes inside the window. Only container documents
// terminate a batch; a trailing scalar cannot be distinguished from the
// prefix of a longer literal.
func lastCompleteDocOffset(buf []byte, indexes []uint32) int64 {
	depth := 0
	last := int64(-1)
	for _, ix := range indexes[:len(indexes)-1] {
		switch buf[ix] {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				last = int64(ix) + 1
			}
			if depth < 0 {
				return last
			}
		}
	}
	return last
}

// DocumentStream iterates the complete documents contained in a buffer of
// concatenated or newline-delimited JSON. Stage 1 of the following batch
// runs concurrently with consumption of the current one; the two sides
// communicate through a single-slot hand-off.
type DocumentStream struct {
	batches chan *Document
	recycle chan *Document
	cancel  context.CancelFunc
	group   *errgroup.Group

	boundaryMu sync.Mutex
	boundary   int64

	cur     *Document
	curIter Iter
	closed  bool
}

// ParseStream parses a buffer holding any number of complete documents.
// batchSize controls the stage 1 window; 0 uses DefaultBatchSize. A
// trailing incomplete document is not an error: the stream ends and
// Boundary reports how many bytes belonged to complete documents.
//
// Iterators returned by Next stay valid until the next call to Next; copy
// out what must live longer.
func ParseStream(buf []byte, batchSize int, opts ...ParserOption) *DocumentStream {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	s := &DocumentStream{
		// capacity 0: the producer blocks until the consumer takes the
		// batch, keeping exactly one batch in flight ahead of consumption
		batches: make(chan *Document),
		recycle: make(chan *Document, 2),
		cancel:  cancel,
		group:   g,
	}

	g.Go(func() error {
		defer close(s.batches)
		scout, err := NewParser(opts...)
		if err != nil {
			return err
		}

		// scanBoundary finds the offset one past the last complete document
		// in buf[pos:end], or -1 when none completes there.
		scanBoundary := func(pos, end int64) (int64, error) {
			window := buf[pos:end]
			if perr := scout.findStructuralIndices(window); perr != nil {
				// Windows may cut documents anywhere, so scan errors near
				// the cut are expected; the full parse of each truncated
				// batch rechecks everything it consumes.
				switch perr.Code {
				case ErrUnclosedString, ErrUTF8, ErrUnescapedChars:
				case ErrEmpty:
					return -1, nil
				default:
					return -1, perr
				}
			}
			last := int64(-1)
			if len(scout.indexes) > 0 {
				last = lastCompleteDocOffset(window, scout.indexes)
			}
			if last < 0 {
				return -1, nil
			}
			return pos + last, nil
		}

		emit := func(pos, end int64) error {
			var reuse *Document
			select {
			case reuse = <-s.recycle:
			default:
			}
			doc, err := ParseND(buf[pos:end], reuse, opts...)
			if err != nil {
				return err
			}
			select {
			case s.batches <- doc:
			case <-ctx.Done():
				return ctx.Err()
			}
			s.addBoundary(end)
			return nil
		}

		pos := int64(0)
		for pos < int64(len(buf)) {
			// Grow the window until at least one document completes in it
			// or it reaches the end of the buffer.
			emitted := false
			for winEnd := pos + int64(batchSize); winEnd < int64(len(buf)); winEnd += int64(batchSize) {
				end, err := scanBoundary(pos, winEnd)
				if err != nil {
					return err
				}
				if end > pos {
					if err := emit(pos, end); err != nil {
						return err
					}
					pos = end
					emitted = true
					break
				}
			}
			if emitted {
				continue
			}

			// Tail: try everything that is left; when only the trailing
			// document is incomplete, fall back to the last boundary so the
			// complete prefix is still delivered.
			end := int64(len(buf))
			err := emit(pos, end)
			if err == nil {
				return nil
			}
			perr, ok := err.(*ParseError)
			if !ok || !trailingIncomplete(perr.Code) {
				return err
			}
			boundary, berr := scanBoundary(pos, end)
			if berr != nil {
				return berr
			}
			if boundary <= pos {
				return nil
			}
			return emit(pos, boundary)
		}
		return nil
	})
	return s
}

func trailingIncomplete(code ErrorCode) bool {
	return code == ErrTape || code == ErrUnclosedString || code == ErrEmpty
}

func (s *DocumentStream) addBoundary(end int64) {
	s.boundaryMu.Lock()
	if end > s.boundary {
		s.boundary = end
	}
	s.boundaryMu.Unlock()
}

// Boundary returns the byte offset one past the last complete document
// delivered so far. A caller streaming a growing buffer can append more
// bytes and restart from this offset.
func (s *DocumentStream) Boundary() int64 {
	s.boundaryMu.Lock()
	defer s.boundaryMu.Unlock()
	return s.boundary
}

// Next returns an iterator over the next document's root, or io.EOF when
// the stream is exhausted.
func (s *DocumentStream) Next() (*Iter, error) {
	if s.closed {
		return nil, io.EOF
	}
	for {
		if s.cur != nil {
			if s.curIter.Advance() == TypeRoot {
				var root Iter
				if _, _, err := s.curIter.Root(&root); err != nil {
					return nil, err
				}
				return &root, nil
			}
			// batch exhausted; hand the buffers back
			select {
			case s.recycle <- s.cur:
			default:
			}
			s.cur = nil
		}
		doc, ok := <-s.batches
		if !ok {
			s.closed = true
			s.cancel()
			if err := s.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, io.EOF
		}
		s.cur = doc
		s.curIter = doc.Iter()
	}
}

// Close stops the stream early and releases the producer. It is safe to
// call after Next returned io.EOF.
func (s *DocumentStream) Close() error {
	s.cancel()
	for range s.batches {
		// drain so the producer can exit
	}
	s.closed = true
	err := s.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// A Stream is used to stream back results.
// Either Error or Value will be set on returned results.
type Stream struct {
	Value *Document
	Error error
}

// ParseNDStream will parse a newline-delimited reader and return parsed
// documents to the supplied result channel. The method returns immediately.
// Each result contains an unspecified number of complete documents, each
// wrapped in its own root pair.
// A stream is finished when a non-nil Error is returned; if the stream was
// parsed until the end the Error value will be io.EOF. The channel is
// closed after an error has been returned.
// An optional channel for returning consumed documents can be provided.
// There is no guarantee that elements will be consumed, so always use
// non-blocking writes to the reuse channel.
func ParseNDStream(r io.Reader, res chan<- Stream, reuse <-chan *Document) {
	const tmpSize = 10 << 20
	buf := bufio.NewReaderSize(r, tmpSize)
	tmpPool := sync.Pool{New: func() interface{} {
		return make([]byte, 0, tmpSize+1024)
	}}
	conc := (runtime.GOMAXPROCS(0) + 1) / 2
	queue := make(chan chan Stream, conc)
	go func() {
		// Forward finished items in order.
		defer close(res)
		end := false
		for items := range queue {
			i := <-items
			select {
			case res <- i:
			default:
				if !end {
					// Block if we haven't returned an error
					res <- i
				}
			}
			if i.Error != nil {
				end = true
			}
		}
	}()
	go func() {
		defer close(queue)
		for {
			tmp := tmpPool.Get().([]byte)[:tmpSize]
			n, err := buf.Read(tmp)
			if err != nil && err != io.EOF {
				queueError(queue, err)
				return
			}
			tmp = tmp[:n]
			// Read until newline so documents are never split
			if err != io.EOF {
				b, err2 := buf.ReadBytes('\n')
				if err2 != nil && err2 != io.EOF {
					queueError(queue, err2)
					return
				}
				tmp = append(tmp, b...)
				// Forward io.EOF
				err = err2
			}

			if len(tmp) > 0 {
				result := make(chan Stream)
				queue <- result
				go func(tmp []byte) {
					var dst *Document
					select {
					case v := <-reuse:
						dst = v
					default:
					}
					parsed, parseErr := ParseND(tmp, dst)
					tmpPool.Put(tmp[:0])
					if parseErr != nil {
						result <- Stream{
							Value: nil,
							Error: fmt.Errorf("parsing input: %w", parseErr),
						}
						return
					}
					result <- Stream{
						Value: parsed,
						Error: nil,
					}
				}(tmp)
			} else {
				tmpPool.Put(tmp[:0])
			}
			if err != nil {
				// Should only really be io.EOF
				queueError(queue, err)
				return
			}
		}
	}()
}

func queueError(queue chan chan Stream, err error) {
	result := make(chan Stream, 1)
	queue <- result
	result <- Stream{
		Value: nil,
		Error: err,
	}
}
