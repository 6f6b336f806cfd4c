// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/companyzero/stellarpeer/perror"
	"github.com/companyzero/stellarpeer/xdr"
)

// sendMessage implements the message codec's encode_outbound (spec §4.2).
// HELLO and ERROR_MSG are serialized with a zero MAC and do not consume a
// sequence number. Every other variant is MAC-protected under sendMacKey and
// consumes exactly one sequence number — incremented only after successful
// serialization, so a marshal failure never skips a sequence number.
func (p *Peer) sendMessage(msg xdr.StellarMessage) error {
	seq := p.sendSeq

	var mac xdr.Mac
	if !msg.IsHello() && !msg.IsError() {
		signed, err := xdr.MarshalSequenceAndMessage(seq, msg)
		if err != nil {
			return perror.New(perror.DecodeFail, p.address, "send_message", err)
		}
		m := hmac.New(sha256.New, p.sendMacKey[:])
		m.Write(signed)
		copy(mac[:], m.Sum(nil))
	}

	env := xdr.AuthenticatedMessage{
		Version: xdr.AuthenticatedMessageV0Version,
		V0: &xdr.AuthenticatedMessageV0{
			Sequence: seq,
			Message:  msg,
			Mac:      mac,
		},
	}

	body, err := xdr.MarshalBytes(env)
	if err != nil {
		return perror.New(perror.DecodeFail, p.address, "send_message", err)
	}

	if !msg.IsHello() && !msg.IsError() {
		p.sendSeq++
	}

	header := EncodeLength(uint32(len(body)))
	if _, err := p.conn.Write(header); err != nil {
		return perror.New(perror.IoFail, p.address, "send_header", err)
	}
	if _, err := p.conn.Write(body); err != nil {
		return perror.New(perror.IoFail, p.address, "send_message", err)
	}

	return nil
}

// receiveEnvelope implements the message codec's decode_inbound (spec §4.2),
// including the two checks the reference implementation left as open TODOs
// and this module treats as mandatory: MAC verification against recvMacKey
// and inbound sequence continuity, for every non-HELLO, non-ERROR_MSG
// message.
func (p *Peer) receiveEnvelope() (xdr.StellarMessage, error) {
	length, err := ReadLength(p.conn, p.maxRecordLength)
	if err != nil {
		return xdr.StellarMessage{}, err
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(p.conn, body); err != nil {
		return xdr.StellarMessage{}, perror.New(perror.IoFail, p.address, "receive_message", err)
	}

	am, err := xdr.Unmarshal(bytes.NewReader(body), int(length))
	if err != nil {
		return xdr.StellarMessage{}, perror.New(perror.DecodeFail, p.address, "receive_message", err)
	}
	if am.V0 == nil {
		return xdr.StellarMessage{}, perror.New(perror.DecodeFail, p.address, "receive_message",
			fmt.Errorf("missing V0 body"))
	}

	msg := am.V0.Message
	if msg.IsHello() || msg.IsError() {
		return msg, nil
	}

	if !p.keysReady {
		return xdr.StellarMessage{}, perror.New(perror.ProtocolViolation, p.address, "receive_message",
			fmt.Errorf("MAC-protected message received before key derivation"))
	}

	signed, err := xdr.MarshalSequenceAndMessage(am.V0.Sequence, msg)
	if err != nil {
		return xdr.StellarMessage{}, perror.New(perror.DecodeFail, p.address, "receive_message", err)
	}
	m := hmac.New(sha256.New, p.recvMacKey[:])
	m.Write(signed)
	expected := m.Sum(nil)
	if !hmac.Equal(expected, am.V0.Mac[:]) {
		return xdr.StellarMessage{}, perror.New(perror.ProtocolViolation, p.address, "receive_message",
			fmt.Errorf("MAC mismatch"))
	}

	if am.V0.Sequence != p.recvSeq {
		return xdr.StellarMessage{}, perror.New(perror.ProtocolViolation, p.address, "receive_message",
			fmt.Errorf("sequence gap: expected %d, got %d", p.recvSeq, am.V0.Sequence))
	}
	p.recvSeq++

	return msg, nil
}
