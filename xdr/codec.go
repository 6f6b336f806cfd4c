// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package xdr

import (
	"bytes"
	"fmt"
	"io"

	xdr2 "github.com/davecgh/go-xdr/xdr2"
)

// envelopeOverhead is the number of bytes in an AuthenticatedMessage that are
// not part of the embedded StellarMessage: the version discriminant (4), the
// sequence number (8) and the trailing MAC (32).
const envelopeOverhead = 4 + 8 + MacSize

// Marshal encodes am onto w, returning the number of bytes written.
func Marshal(w io.Writer, am AuthenticatedMessage) (int, error) {
	if am.Version != AuthenticatedMessageV0Version || am.V0 == nil {
		return 0, fmt.Errorf("xdr: unsupported authenticated message version %d", am.Version)
	}

	var buf bytes.Buffer
	if _, err := xdr2.Marshal(&buf, uint32(am.Version)); err != nil {
		return 0, err
	}
	if _, err := xdr2.Marshal(&buf, am.V0.Sequence); err != nil {
		return 0, err
	}
	if _, err := marshalStellarMessage(&buf, am.V0.Message); err != nil {
		return 0, err
	}
	if _, err := xdr2.Marshal(&buf, am.V0.Mac); err != nil {
		return 0, err
	}

	return w.Write(buf.Bytes())
}

// MarshalBytes is a convenience wrapper returning the encoded record body.
func MarshalBytes(am AuthenticatedMessage) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := Marshal(&buf, am); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes an AuthenticatedMessage from r. recordLen must be the
// exact number of bytes the record framer reported for this record; it is
// required to recover the length of an unrecognized StellarMessage variant,
// since XDR unions carry no explicit length prefix of their own.
func Unmarshal(r io.Reader, recordLen int) (AuthenticatedMessage, error) {
	if recordLen < envelopeOverhead+4 {
		return AuthenticatedMessage{}, fmt.Errorf("xdr: record too short: %d bytes", recordLen)
	}

	var version uint32
	if _, err := xdr2.Unmarshal(r, &version); err != nil {
		return AuthenticatedMessage{}, err
	}
	if AuthenticatedMessageVersion(version) != AuthenticatedMessageV0Version {
		return AuthenticatedMessage{}, fmt.Errorf("xdr: unsupported authenticated message version %d", version)
	}

	var seq uint64
	if _, err := xdr2.Unmarshal(r, &seq); err != nil {
		return AuthenticatedMessage{}, err
	}

	msgLen := recordLen - envelopeOverhead
	msg, err := unmarshalStellarMessage(r, msgLen)
	if err != nil {
		return AuthenticatedMessage{}, err
	}

	var mac Mac
	if _, err := xdr2.Unmarshal(r, &mac); err != nil {
		return AuthenticatedMessage{}, err
	}

	return AuthenticatedMessage{
		Version: AuthenticatedMessageV0Version,
		V0: &AuthenticatedMessageV0{
			Sequence: seq,
			Message:  msg,
			Mac:      mac,
		},
	}, nil
}

// MarshalSequenceAndMessage encodes just (sequence, message) — the exact byte
// range the MAC is computed over (spec §6: "over the XDR-serialized
// (sequence, message) pair", not the envelope with its zeroed MAC field).
func MarshalSequenceAndMessage(sequence uint64, msg StellarMessage) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr2.Marshal(&buf, sequence); err != nil {
		return nil, err
	}
	if _, err := marshalStellarMessage(&buf, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalStellarMessage(w io.Writer, m StellarMessage) (int, error) {
	var buf bytes.Buffer
	if _, err := xdr2.Marshal(&buf, uint32(m.Type)); err != nil {
		return 0, err
	}

	switch {
	case m.IsHello():
		if _, err := xdr2.Marshal(&buf, *m.Hello); err != nil {
			return 0, err
		}
	case m.IsAuth():
		if _, err := xdr2.Marshal(&buf, *m.Auth); err != nil {
			return 0, err
		}
	case m.IsError():
		if _, err := xdr2.Marshal(&buf, *m.ErrorMsg); err != nil {
			return 0, err
		}
	case m.Opaque != nil:
		if _, err := buf.Write(m.Opaque.Raw); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("xdr: cannot marshal empty StellarMessage of type %s", m.Type)
	}

	return w.Write(buf.Bytes())
}

func unmarshalStellarMessage(r io.Reader, totalLen int) (StellarMessage, error) {
	if totalLen < 4 {
		return StellarMessage{}, fmt.Errorf("xdr: message too short: %d bytes", totalLen)
	}

	var rawType uint32
	if _, err := xdr2.Unmarshal(r, &rawType); err != nil {
		return StellarMessage{}, err
	}
	t := MessageType(rawType)
	remaining := totalLen - 4

	switch t {
	case MsgTypeHello:
		var h Hello
		if _, err := xdr2.Unmarshal(r, &h); err != nil {
			return StellarMessage{}, err
		}
		return StellarMessage{Type: t, Hello: &h}, nil
	case MsgTypeAuth:
		var a Auth
		if _, err := xdr2.Unmarshal(r, &a); err != nil {
			return StellarMessage{}, err
		}
		return StellarMessage{Type: t, Auth: &a}, nil
	case MsgTypeErrorMsg:
		var e Error
		if _, err := xdr2.Unmarshal(r, &e); err != nil {
			return StellarMessage{}, err
		}
		return StellarMessage{Type: t, ErrorMsg: &e}, nil
	default:
		if remaining < 0 {
			return StellarMessage{}, fmt.Errorf("xdr: negative opaque length for message type %d", rawType)
		}
		raw := make([]byte, remaining)
		if _, err := io.ReadFull(r, raw); err != nil {
			return StellarMessage{}, err
		}
		return StellarMessage{Type: t, Opaque: &RawMessage{Type: t, Raw: raw}}, nil
	}
}
