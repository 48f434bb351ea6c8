// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Entry value encoding. This is deliberately minimal: the binary encoding
// of typed values is an external collaborator's concern (callers bring
// their own schema); what lives here is the small, stable framing every
// value needs regardless of its type, plus optional snappy compression of
// the payload bytes.

package llsdb

import (
	"encoding/binary"

	"github.com/golang/snappy"
)

// Encoder is implemented by values that can be written to a list. It is the
// seam between llsdb's entry framing and a caller's own schema codec;
// llsdb imposes no format beyond "a byte slice".
type Encoder interface {
	EncodeValue() ([]byte, error)
}

// Decoder is implemented by values that can be populated from a list
// entry's payload.
type Decoder interface {
	DecodeValue([]byte) error
}

// Bytes is the identity Encoder/Decoder: the payload is the value.
type Bytes []byte

// EncodeValue implements Encoder.
func (b Bytes) EncodeValue() ([]byte, error) { return []byte(b), nil }

// DecodeValue implements Decoder.
func (b *Bytes) DecodeValue(p []byte) error {
	*b = append((*b)[:0], p...)
	return nil
}

// Uint64 is a fixed-width little-endian Encoder/Decoder, convenient for
// tests and for indices keyed by small integers.
type Uint64 uint64

// EncodeValue implements Encoder.
func (u Uint64) EncodeValue() ([]byte, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(u))
	return buf[:], nil
}

// DecodeValue implements Decoder.
func (u *Uint64) DecodeValue(p []byte) error {
	if len(p) != 8 {
		return errCorruption("Uint64.DecodeValue", len(p))
	}
	*u = Uint64(binary.LittleEndian.Uint64(p))
	return nil
}

// String is a length-implicit (the entry framing already carries the
// length) Encoder/Decoder for plain strings.
type String string

// EncodeValue implements Encoder.
func (s String) EncodeValue() ([]byte, error) { return []byte(s), nil }

// DecodeValue implements Decoder.
func (s *String) DecodeValue(p []byte) error {
	*s = String(p)
	return nil
}

const (
	tagNotCompressed byte = 0
	tagCompressed    byte = 1
)

// compressPayload optionally snappy-compresses p, returning a buffer with
// a one-byte tag prefix. Compression is skipped (tag=not-compressed) when
// it doesn't actually save space.
func compressPayload(p []byte, enable bool) []byte {
	if !enable {
		return append([]byte{tagNotCompressed}, p...)
	}
	compressed := snappy.Encode(nil, p)
	if len(compressed) >= len(p) {
		return append([]byte{tagNotCompressed}, p...)
	}
	return append([]byte{tagCompressed}, compressed...)
}

// decompressPayload reverses compressPayload.
func decompressPayload(p []byte) ([]byte, error) {
	if len(p) == 0 {
		return nil, errCorruption("decompressPayload", "empty payload")
	}
	tag, body := p[0], p[1:]
	switch tag {
	case tagNotCompressed:
		return body, nil
	case tagCompressed:
		out, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, errCorruptionErr("decompressPayload", err)
		}
		return out, nil
	default:
		return nil, errCorruption("decompressPayload", tag)
	}
}
