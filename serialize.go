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
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Serializer persists a parsed document (tape plus string buffer) and
// reads it back without re-parsing. The tape is an in-memory format; this
// container is versioned independently of it.
//
// A Serializer can be reused, but not used concurrently.
type Serializer struct {
	comp    CompressMode
	scratch []byte
}

const serializedVersion = 1

var serializeHeader = [5]byte{'G', 'J', 'T', '0' + serializedVersion, 0}

// CompressMode controls how the serialized payload is packed.
type CompressMode uint8

const (
	// CompressNone stores the payload uncompressed.
	CompressNone CompressMode = iota

	// CompressFast uses s2: very fast, moderate ratio.
	CompressFast

	// CompressDefault uses zstd at its default level, a good tradeoff.
	CompressDefault

	// CompressBest uses zstd at its best level for cold storage.
	CompressBest
)

// NewSerializer creates a Serializer with CompressDefault.
func NewSerializer() *Serializer {
	return &Serializer{comp: CompressDefault}
}

// CompressMode sets the compression mode for subsequent Serialize calls.
func (s *Serializer) CompressMode(c CompressMode) error {
	if c > CompressBest {
		return fmt.Errorf("unknown compress mode %d", c)
	}
	s.comp = c
	return nil
}

var zstdEncFast, zstdEncBest *zstd.Encoder
var zstdDec *zstd.Decoder
var zstdInit sync.Once

func initZstd() {
	zstdEncFast, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1))
	zstdEncBest, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression),
		zstd.WithEncoderConcurrency(1))
	zstdDec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true))
}

// Serialize appends the serialized form of doc to dst and returns it.
//
// Layout: a 5-byte header (magic, version, compress mode), the xxhash64 of
// the raw payload, then the payload packed according to the compress mode:
// tape and string buffer lengths as uvarints, each tape word
// little-endian, the string buffer bytes.
func (s *Serializer) Serialize(dst []byte, doc *Document) []byte {
	zstdInit.Do(initZstd)

	raw := s.scratch[:0]
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(doc.Tape)))
	raw = append(raw, tmp[:n]...)
	n = binary.PutUvarint(tmp[:], uint64(len(doc.Strings)))
	raw = append(raw, tmp[:n]...)
	for _, w := range doc.Tape {
		raw = binary.LittleEndian.AppendUint64(raw, w)
	}
	raw = append(raw, doc.Strings...)
	s.scratch = raw

	hdr := serializeHeader
	hdr[4] = byte(s.comp)
	dst = append(dst, hdr[:]...)
	dst = binary.LittleEndian.AppendUint64(dst, xxhash.Sum64(raw))

	switch s.comp {
	case CompressNone:
		dst = append(dst, raw...)
	case CompressFast:
		dst = append(dst, s2.Encode(nil, raw)...)
	case CompressDefault:
		dst = zstdEncFast.EncodeAll(raw, dst)
	case CompressBest:
		dst = zstdEncBest.EncodeAll(raw, dst)
	}
	return dst
}

var (
	// ErrSerializedHeader is returned for data that is not a serialized
	// document or has an unknown version.
	ErrSerializedHeader = errors.New("unrecognized serialized document header")

	// ErrSerializedChecksum is returned when the payload hash does not
	// match, indicating corruption.
	ErrSerializedChecksum = errors.New("serialized document checksum mismatch")
)

// Deserialize reads a document produced by Serialize. An optional
// destination can be provided to reuse buffers.
func (s *Serializer) Deserialize(src []byte, dst *Document) (*Document, error) {
	zstdInit.Do(initZstd)

	if len(src) < len(serializeHeader)+8 {
		return nil, ErrSerializedHeader
	}
	if src[0] != 'G' || src[1] != 'J' || src[2] != 'T' || src[3] != '0'+serializedVersion {
		return nil, ErrSerializedHeader
	}
	mode := CompressMode(src[4])
	src = src[5:]
	wantSum := binary.LittleEndian.Uint64(src)
	src = src[8:]

	var raw []byte
	var err error
	switch mode {
	case CompressNone:
		raw = src
	case CompressFast:
		raw, err = s2.Decode(s.scratch[:0], src)
	case CompressDefault, CompressBest:
		raw, err = zstdDec.DecodeAll(src, s.scratch[:0])
	default:
		return nil, ErrSerializedHeader
	}
	if err != nil {
		return nil, err
	}
	if mode != CompressNone {
		s.scratch = raw
	}

	if xxhash.Sum64(raw) != wantSum {
		return nil, ErrSerializedChecksum
	}

	tapeLen, n := binary.Uvarint(raw)
	if n <= 0 {
		return nil, ErrSerializedHeader
	}
	raw = raw[n:]
	stringsLen, n := binary.Uvarint(raw)
	if n <= 0 {
		return nil, ErrSerializedHeader
	}
	raw = raw[n:]
	if uint64(len(raw)) != tapeLen*8+stringsLen {
		return nil, ErrSerializedHeader
	}

	if dst == nil {
		dst = &Document{}
	}
	dst.Tape = dst.Tape[:0]
	for i := uint64(0); i < tapeLen; i++ {
		dst.Tape = append(dst.Tape, binary.LittleEndian.Uint64(raw[i*8:]))
	}
	dst.Strings = append(dst.Strings[:0], raw[tapeLen*8:]...)
	dst.Message = nil
	dst.internal = nil
	return dst, nil
}
