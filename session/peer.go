// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package session implements the peer authentication and message-framing
// core of an overlay network client: the three-message handshake, the
// X25519/HKDF key schedule, Ed25519 certificate signing and verification,
// HMAC-protected sequenced message framing, and the length-prefixed record
// framer underneath it all.
//
// A Peer is created from an already-connected net.Conn and a Role; it is not
// safe for concurrent use and owns its connection exclusively (spec §5).
package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/companyzero/stellarpeer/identity"
	"github.com/companyzero/stellarpeer/logctx"
	"github.com/companyzero/stellarpeer/perror"
	"github.com/companyzero/stellarpeer/xdr"
)

const (
	// ProtocolLedgerVersion, ProtocolOverlayVersion and
	// ProtocolOverlayMinVersion are advertised in every Hello.
	ProtocolLedgerVersion     = 9000
	ProtocolOverlayVersion    = 9000
	ProtocolOverlayMinVersion = 0

	// VersionString identifies this implementation in the Hello frame.
	VersionString = "stellarpeer[0.1]"

	// DefaultHandshakeDeadline bounds the entire handshake, per spec §5's
	// recommendation.
	DefaultHandshakeDeadline = 10 * time.Second

	// DefaultDialTimeout matches the reference implementation's
	// connect_timeout (original_source/src/overlay/peer.rs).
	DefaultDialTimeout = 5 * time.Second

	// DefaultMessageTimeout bounds each post-handshake SendMessage/
	// ReceiveMessage call. Spec §5 requires a read timeout on every
	// receive_message call, not just during the handshake.
	DefaultMessageTimeout = 30 * time.Second
)

// Peer owns one authenticated, sequenced, MAC-protected connection to a
// single remote node. It is single-owner: there is no Clone (spec §9 design
// note) — a caller needing to observe peer state from elsewhere should call
// the read-only accessors below instead of sharing the connection.
type Peer struct {
	conn    net.Conn
	address string
	role    Role
	node    *identity.LocalNode
	log     *logctx.Logger

	maxRecordLength uint32
	messageTimeout  time.Duration

	sendSeq uint64
	recvSeq uint64

	ephPriv [32]byte
	ephPub  [32]byte

	authCert   xdr.AuthCert
	localNonce [32]byte
	hello      xdr.Hello

	keysReady  bool
	sharedKey  [32]byte
	sendMacKey [32]byte
	recvMacKey [32]byte

	peerHello     *xdr.Hello
	peerPublicKey [32]byte

	state state
}

// New builds a Peer around an already-connected stream. role determines
// which side of the handshake it plays; address is retained for logging and
// identity (spec §3), not used to dial — the caller has already connected.
func New(conn net.Conn, address string, role Role, node *identity.LocalNode, log *logctx.Logger) (*Peer, error) {
	if log == nil {
		log = logctx.New("session", nil)
	}

	p := &Peer{
		conn:            conn,
		address:         address,
		role:            role,
		node:            node,
		log:             log,
		maxRecordLength: DefaultMaxRecordLength,
		messageTimeout:  DefaultMessageTimeout,
	}

	var err error
	p.ephPriv, p.ephPub, err = generateX25519KeyPair(rand.Reader)
	if err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(rand.Reader, p.localNonce[:]); err != nil {
		return nil, perror.New(perror.IoFail, address, "new_peer", err)
	}

	p.authCert, err = CreateAuthCert(node, p.ephPub)
	if err != nil {
		return nil, perror.New(perror.AuthFail, address, "new_peer", err)
	}

	p.hello = xdr.Hello{
		LedgerVersion:     ProtocolLedgerVersion,
		OverlayVersion:    ProtocolOverlayVersion,
		OverlayMinVersion: ProtocolOverlayMinVersion,
		NetworkID:         xdr.Uint256(node.NetworkID),
		VersionStr:        VersionString,
		ListeningPort:     int32(node.ListenPort),
		PeerID: xdr.PublicKey{
			Type:    xdr.PublicKeyTypeEd25519,
			Ed25519: xdr.Uint256(node.Public),
		},
		Cert:  p.authCert,
		Nonce: xdr.Uint256(p.localNonce),
	}

	return p, nil
}

// Dial connects to address with DefaultDialTimeout and returns a Peer ready
// to run the INITIATOR side of the handshake.
func Dial(address string, node *identity.LocalNode, log *logctx.Logger) (*Peer, error) {
	conn, err := net.DialTimeout("tcp", address, DefaultDialTimeout)
	if err != nil {
		return nil, perror.New(perror.ConnectFail, address, "dial", err)
	}
	p, err := New(conn, address, Initiator, node, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// Address returns the peer's dial/accept address, unchanged for the life of
// the session.
func (p *Peer) Address() string { return p.address }

// IsAuthenticated reports whether the handshake has completed successfully.
func (p *Peer) IsAuthenticated() bool { return p.state == stateAuthenticated }

// PeerHello returns the remote's Hello frame once received, or nil before
// that.
func (p *Peer) PeerHello() *xdr.Hello { return p.peerHello }

// PeerIdentity returns the remote's long-term Ed25519 public key, valid once
// PeerHello is non-nil.
func (p *Peer) PeerIdentity() [32]byte { return p.peerPublicKey }

// SetMessageTimeout overrides DefaultMessageTimeout for subsequent
// SendMessage/ReceiveMessage calls.
func (p *Peer) SetMessageTimeout(d time.Duration) { p.messageTimeout = d }

// Close releases the connection and zeroes per-session key material (spec
// §5: "keys are zero-filled on destruction").
func (p *Peer) Close() error {
	for _, k := range [][]byte{p.ephPriv[:], p.sharedKey[:], p.sendMacKey[:], p.recvMacKey[:]} {
		for i := range k {
			k[i] = 0
		}
	}
	p.state = stateFailed
	return p.conn.Close()
}

func (p *Peer) fail(err error) error {
	p.state = stateFailed
	p.log.Error("peer %s: %v", p.address, err)
	p.log.Dump("peer_hello", p.peerHello)
	p.conn.Close()
	return err
}

// Handshake drives the three-message handshake to completion (spec §4.5).
// It applies a handshake-wide deadline to the underlying connection —
// ctx's deadline if set, else DefaultHandshakeDeadline — and clears it again
// on success so that subsequent SendMessage/ReceiveMessage calls are not
// bound by it.
func (p *Peer) Handshake(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultHandshakeDeadline)
	}
	if err := p.conn.SetDeadline(deadline); err != nil {
		return p.fail(perror.New(perror.IoFail, p.address, "handshake", err))
	}

	var err error
	if p.role == Initiator {
		err = p.handshakeInitiator()
	} else {
		err = p.handshakeResponder()
	}
	if err != nil {
		return p.fail(err)
	}

	if err := p.conn.SetDeadline(time.Time{}); err != nil {
		return p.fail(perror.New(perror.IoFail, p.address, "handshake", err))
	}

	p.state = stateAuthenticated
	p.log.Info("authentication completed for peer %s", p.address)
	return nil
}

func (p *Peer) handshakeInitiator() error {
	if err := p.sendMessage(xdr.HelloMessage(p.hello)); err != nil {
		return err
	}

	msg, err := p.receiveEnvelope()
	if err != nil {
		return err
	}
	if !msg.IsHello() {
		return perror.New(perror.ProtocolViolation, p.address, "handshake",
			fmt.Errorf("expected HELLO, got %s", msg.Type))
	}
	if err := p.handlePeerHello(*msg.Hello, Initiator); err != nil {
		return err
	}
	p.state = stateKeysDerived

	if err := p.sendMessage(xdr.AuthMessage()); err != nil {
		return err
	}
	p.state = stateAuthSent

	msg, err = p.receiveEnvelope()
	if err != nil {
		return err
	}
	if !msg.IsAuth() {
		return perror.New(perror.ProtocolViolation, p.address, "handshake",
			fmt.Errorf("expected AUTH, got %s", msg.Type))
	}

	return nil
}

func (p *Peer) handshakeResponder() error {
	msg, err := p.receiveEnvelope()
	if err != nil {
		return err
	}
	if !msg.IsHello() {
		return perror.New(perror.ProtocolViolation, p.address, "handshake",
			fmt.Errorf("expected HELLO, got %s", msg.Type))
	}
	if err := p.handlePeerHello(*msg.Hello, Responder); err != nil {
		return err
	}
	p.state = stateKeysDerived

	if err := p.sendMessage(xdr.HelloMessage(p.hello)); err != nil {
		return err
	}

	msg, err = p.receiveEnvelope()
	if err != nil {
		return err
	}
	if !msg.IsAuth() {
		return perror.New(perror.ProtocolViolation, p.address, "handshake",
			fmt.Errorf("expected AUTH, got %s", msg.Type))
	}

	if err := p.sendMessage(xdr.AuthMessage()); err != nil {
		return err
	}
	p.state = stateAuthSent

	return nil
}

// handlePeerHello validates and stores the remote's Hello, verifies its
// AuthCert, and derives the session's shared/MAC keys.
func (p *Peer) handlePeerHello(hello xdr.Hello, role Role) error {
	if hello.NetworkID != xdr.Uint256(p.node.NetworkID) {
		return perror.New(perror.ProtocolViolation, p.address, "handle_hello",
			fmt.Errorf("network id mismatch"))
	}

	if err := VerifyAuthCert(hello.Cert, hello.PeerID.Ed25519, p.node.NetworkID); err != nil {
		return err
	}

	remotePub := [32]byte(hello.Cert.Pubkey.Key)
	remoteNonce := [32]byte(hello.Nonce)

	keys, err := DeriveKeys(role, p.ephPriv, p.ephPub, remotePub, p.localNonce, remoteNonce)
	if err != nil {
		return err
	}

	p.sharedKey = keys.Shared
	p.sendMacKey = keys.Send
	p.recvMacKey = keys.Recv
	p.keysReady = true

	p.peerHello = &hello
	p.peerPublicKey = [32]byte(hello.PeerID.Ed25519)

	return nil
}

// SendMessage sends an application message once the session is
// authenticated; it is MAC-protected and consumes one sequence number
// (invariant 2, spec §3), except for HELLO and ERROR_MSG, which go out with
// a zero MAC and no sequence number. The write is bounded by messageTimeout
// (DefaultMessageTimeout unless overridden by SetMessageTimeout).
func (p *Peer) SendMessage(msg xdr.StellarMessage) error {
	if !p.IsAuthenticated() {
		return perror.New(perror.ProtocolViolation, p.address, "send_message",
			fmt.Errorf("session is not authenticated"))
	}
	if err := p.conn.SetWriteDeadline(time.Now().Add(p.messageTimeout)); err != nil {
		return perror.New(perror.IoFail, p.address, "send_message", err)
	}
	return p.sendMessage(msg)
}

// ReceiveMessage receives one application message once the session is
// authenticated, verifying its MAC and sequence number (HELLO and ERROR_MSG
// are returned without either check). The read is bounded
// by messageTimeout (spec §5 requires a per-operation read timeout on
// receive_message, not only during the handshake).
func (p *Peer) ReceiveMessage() (xdr.StellarMessage, error) {
	if !p.IsAuthenticated() {
		return xdr.StellarMessage{}, perror.New(perror.ProtocolViolation, p.address, "receive_message",
			fmt.Errorf("session is not authenticated"))
	}
	if err := p.conn.SetReadDeadline(time.Now().Add(p.messageTimeout)); err != nil {
		return xdr.StellarMessage{}, perror.New(perror.IoFail, p.address, "receive_message", err)
	}
	return p.receiveEnvelope()
}
