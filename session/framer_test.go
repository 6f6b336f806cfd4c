// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"bytes"
	"testing"
)

// S3 (framing): encode_length(5) yields 80 00 00 05; read_length(80 00 00
// 05) yields 5; read_length(FF FF FF FF) yields 0x7FFFFFFF.
func TestFramingS3(t *testing.T) {
	got := EncodeLength(5)
	want := []byte{0x80, 0x00, 0x00, 0x05}
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodeLength(5) = % x, want % x", got, want)
	}

	n, err := ReadLength(bytes.NewReader(want), 0)
	if err != nil {
		t.Fatalf("ReadLength: %v", err)
	}
	if n != 5 {
		t.Fatalf("ReadLength(80 00 00 05) = %d, want 5", n)
	}

	n, err = ReadLength(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF}), 0x7FFFFFFF)
	if err != nil {
		t.Fatalf("ReadLength: %v", err)
	}
	if n != 0x7FFFFFFF {
		t.Fatalf("ReadLength(FF FF FF FF) = %#x, want 0x7FFFFFFF", n)
	}
}

// Property 5: decode_length(encode_length(n)) == n for all n < 2^31.
func TestFramingRoundTrip(t *testing.T) {
	for _, n := range []uint32{0, 1, 5, 1024, 0x7FFFFFFE, 0x7FFFFFFF} {
		encoded := EncodeLength(n)
		got, err := ReadLength(bytes.NewReader(encoded), 0x7FFFFFFF)
		if err != nil {
			t.Fatalf("n=%d: ReadLength: %v", n, err)
		}
		if got != n {
			t.Fatalf("n=%d: round-trip got %d", n, got)
		}
	}
}

func TestReadLengthShortRead(t *testing.T) {
	_, err := ReadLength(bytes.NewReader([]byte{0x80, 0x00}), 0)
	if err == nil {
		t.Fatalf("expected an error on short read, got nil")
	}
}

func TestReadLengthRejectsOversizeRecord(t *testing.T) {
	encoded := EncodeLength(1024)
	_, err := ReadLength(bytes.NewReader(encoded), 100)
	if err == nil {
		t.Fatalf("expected an error for a record exceeding the configured ceiling")
	}
}
