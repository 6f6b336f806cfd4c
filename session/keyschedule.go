// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/companyzero/stellarpeer/perror"
)

// Role identifies which side of the handshake a Peer is playing. The HKDF
// context bytes are asymmetric by role (spec §4.3); there is no symmetric
// shortcut.
type Role int

const (
	Initiator Role = iota
	Responder
)

func (r Role) tag() byte {
	if r == Initiator {
		return 0x00
	}
	return 0x01
}

// Keys is the output of the key schedule: the HKDF-extracted shared secret
// and the two per-direction HMAC keys.
type Keys struct {
	Shared [32]byte
	Send   [32]byte
	Recv   [32]byte
}

// generateX25519KeyPair returns a fresh ephemeral X25519 key pair. The
// scalar is clamped internally by curve25519.X25519 per RFC 7748.
func generateX25519KeyPair(rand io.Reader) (priv, pub [32]byte, err error) {
	if _, err = io.ReadFull(rand, priv[:]); err != nil {
		return priv, pub, perror.New(perror.IoFail, "", "generate_ephemeral_key", err)
	}
	pubSlice, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return priv, pub, perror.New(perror.AuthFail, "", "generate_ephemeral_key", err)
	}
	copy(pub[:], pubSlice)
	return priv, pub, nil
}

// DeriveKeys implements the key schedule of spec §4.3.
//
//  1. dh = X25519(localPriv, remotePub)
//  2. (A, B) = (localPub, remotePub) if role == Initiator, else
//     (remotePub, localPub) — A is always the initiator's public key.
//  3. ikm = dh || A || B
//  4. prk = HKDF-Extract(salt=nil, ikm)
//  5. send key = HKDF-Expand(prk, tag_send || localNonce || remoteNonce, 32)
//  6. recv key = HKDF-Expand(prk, tag_recv || remoteNonce || localNonce, 32)
func DeriveKeys(role Role, localPriv, localPub, remotePub, localNonce, remoteNonce [32]byte) (Keys, error) {
	dh, err := curve25519.X25519(localPriv[:], remotePub[:])
	if err != nil {
		return Keys{}, perror.New(perror.AuthFail, "", "derive_keys", err)
	}

	var a, b [32]byte
	if role == Initiator {
		a, b = localPub, remotePub
	} else {
		a, b = remotePub, localPub
	}

	ikm := make([]byte, 0, len(dh)+64)
	ikm = append(ikm, dh...)
	ikm = append(ikm, a[:]...)
	ikm = append(ikm, b[:]...)

	prk := hkdf.Extract(sha256.New, ikm, nil)

	var keys Keys
	copy(keys.Shared[:], prk)

	// Our Send key and the remote's Recv key must be the same derivation,
	// so each is tagged by the role of whichever side originates that
	// data flow: our own role for Send, the *other* role for Recv.
	sendTag := role.tag()
	recvTag := Responder.tag()
	if role == Responder {
		recvTag = Initiator.tag()
	}

	infoSend := make([]byte, 0, 1+64)
	infoSend = append(infoSend, sendTag)
	infoSend = append(infoSend, localNonce[:]...)
	infoSend = append(infoSend, remoteNonce[:]...)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, infoSend), keys.Send[:]); err != nil {
		return Keys{}, perror.New(perror.AuthFail, "", "derive_keys", err)
	}

	infoRecv := make([]byte, 0, 1+64)
	infoRecv = append(infoRecv, recvTag)
	infoRecv = append(infoRecv, remoteNonce[:]...)
	infoRecv = append(infoRecv, localNonce[:]...)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, infoRecv), keys.Recv[:]); err != nil {
		return Keys{}, perror.New(perror.AuthFail, "", "derive_keys", err)
	}

	return keys, nil
}
