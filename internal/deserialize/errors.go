// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deserialize

import "fmt"

// DecodeError is returned when the decoded byte count does not equal the
// input length, guarding against ABI drift (spec §4.A).
type DecodeError struct {
	Type     string
	Consumed int
	Total    int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q consumed %d of %d bytes", e.Type, e.Consumed, e.Total)
}

// UnsupportedDelta is a fatal error raised when a table-delta variant is not
// one this worker knows how to decode (spec §4.A).
type UnsupportedDelta struct {
	Variant uint8
}

func (e *UnsupportedDelta) Error() string {
	return fmt.Sprintf("unsupported table delta variant %d", e.Variant)
}
