// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deserialize

import (
	"encoding/binary"
	"fmt"
	"math"
)

// byteReader is the primitive cursor both decoder backends read through. It
// never copies the underlying slice; every accessor advances pos and fails
// with an error wrapping errShortBuffer once it would run past the end,
// which is how a truncated payload turns into an error at the call site
// instead of a panic.
type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(buf []byte) *byteReader {
	return &byteReader{buf: buf}
}

func (r *byteReader) remaining() int { return len(r.buf) - r.pos }

func (r *byteReader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("read byte: %w", errShortBuffer)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) readBytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("read %d bytes: %w", n, errShortBuffer)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// readVarUint decodes an unsigned LEB128 varint, the integer encoding used
// throughout the ABI wire format for lengths and variant tags.
func (r *byteReader) readVarUint() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.readByte()
		if err != nil {
			return 0, fmt.Errorf("varuint: %w", err)
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("varuint: %w", errVarintOverflow)
		}
	}
}

func (r *byteReader) readString() (string, error) {
	n, err := r.readVarUint()
	if err != nil {
		return "", fmt.Errorf("string length: %w", err)
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", fmt.Errorf("string body: %w", err)
	}
	return string(b), nil
}

func (r *byteReader) readUint8() (uint8, error)   { b, err := r.readByte(); return b, err }
func (r *byteReader) readBool() (bool, error) {
	b, err := r.readByte()
	return b != 0, err
}

func (r *byteReader) readUint16() (uint16, error) {
	b, err := r.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *byteReader) readUint32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *byteReader) readUint64() (uint64, error) {
	b, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *byteReader) readInt64() (int64, error) {
	v, err := r.readUint64()
	return int64(v), err
}

func (r *byteReader) readFloat64() (float64, error) {
	v, err := r.readUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}
