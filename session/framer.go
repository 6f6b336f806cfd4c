// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/companyzero/stellarpeer/perror"
)

// lastFragmentBit marks a 4-byte record-length header as carrying the last
// (and, in this implementation, only) fragment of a record. Per RFC 4506
// §11, the high bit clear would mean "more fragments follow"; this
// implementation never emits or accepts multi-fragment records.
const lastFragmentBit = 0x80000000

// DefaultMaxRecordLength bounds the length ReadLength will accept, to avoid
// allocating an attacker-controlled amount of memory before a record is
// even authenticated. The wire format itself allows up to 2^31-1.
const DefaultMaxRecordLength = 4 * 1024 * 1024

// EncodeLength returns the 4-byte big-endian record-length header for a body
// of n bytes, with the last-fragment bit always set.
func EncodeLength(n uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n|lastFragmentBit)
	return b[:]
}

// ReadLength reads a 4-byte record-length header from r, clears the
// last-fragment bit, and returns the remaining 31-bit length. A short read
// is reported as perror.IoFail, not silently coerced to zero (spec §9).
// maxLen bounds the accepted length; 0 means DefaultMaxRecordLength.
func ReadLength(r io.Reader, maxLen uint32) (uint32, error) {
	if maxLen == 0 {
		maxLen = DefaultMaxRecordLength
	}

	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, perror.New(perror.IoFail, "", "read_length", err)
	}

	n := binary.BigEndian.Uint32(b[:]) &^ lastFragmentBit
	if n > maxLen {
		return 0, perror.New(perror.ProtocolViolation, "", "read_length",
			fmt.Errorf("record length %d exceeds maximum %d", n, maxLen))
	}
	return n, nil
}
