// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package identity manages the long-term node identity used to sign
// ephemeral auth certificates: an Ed25519 key pair and the network ID the
// node participates in.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/agl/ed25519"
)

var ErrVerify = errors.New("identity: signature verification failed")

// LocalNode is the read-only, per-process identity handed to every peer
// session. It is constructed once by the caller (never a package-level
// singleton — see DESIGN.md Open Question 2) and shared freely, since it is
// never mutated after New/FromPrivateKey returns.
type LocalNode struct {
	Public     [ed25519.PublicKeySize]byte
	private    [ed25519.PrivateKeySize]byte
	NetworkID  [32]byte
	ListenPort uint16
}

// NetworkID hashes a network passphrase into the 32-byte network ID carried
// in every Hello and AuthCert signing payload (spec §6).
func NetworkID(passphrase string) [32]byte {
	return sha256.Sum256([]byte(passphrase))
}

// New generates a fresh Ed25519 identity for the given network passphrase
// and listening port.
func New(passphrase string, listenPort uint16) (*LocalNode, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	n := &LocalNode{
		NetworkID:  NetworkID(passphrase),
		ListenPort: listenPort,
	}
	copy(n.Public[:], pub[:])
	copy(n.private[:], priv[:])
	return n, nil
}

// FromPrivateKey builds a LocalNode around an already-generated Ed25519 key
// pair, used when loading a persisted identity (persistence itself is the
// out-of-scope peer registry's job).
func FromPrivateKey(priv [ed25519.PrivateKeySize]byte, passphrase string, listenPort uint16) *LocalNode {
	n := &LocalNode{
		NetworkID:  NetworkID(passphrase),
		ListenPort: listenPort,
		private:    priv,
	}
	copy(n.Public[:], priv[32:])
	return n
}

// Sign signs msg with the node's long-term Ed25519 key.
func (n *LocalNode) Sign(msg []byte) [ed25519.SignatureSize]byte {
	sig := ed25519.Sign(&n.private, msg)
	return *sig
}

// Verify checks sig over msg against the node's own public key. Primarily
// useful in tests; peer certificates are verified against the remote peer's
// PeerID, not the local node's key.
func (n *LocalNode) Verify(msg []byte, sig [ed25519.SignatureSize]byte) bool {
	return ed25519.Verify(&n.Public, msg, &sig)
}

// VerifyWithKey checks sig over msg against an arbitrary Ed25519 public key
// (the remote peer's PeerID, extracted from its Hello).
func VerifyWithKey(pub [ed25519.PublicKeySize]byte, msg []byte, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	var s [ed25519.SignatureSize]byte
	copy(s[:], sig)
	return ed25519.Verify(&pub, msg, &s)
}

// Fingerprint returns a short, human-readable identifier for logging.
func (n *LocalNode) Fingerprint() string {
	return hex.EncodeToString(n.Public[:8])
}

// Zero destroys the node's private key material. Callers should invoke this
// once the node is no longer needed (process shutdown, key rotation).
func (n *LocalNode) Zero() {
	for i := range n.private {
		n.private[i] = 0
	}
}
