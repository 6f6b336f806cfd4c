// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package xdr defines the wire types exchanged during overlay peer
// authentication: Hello, AuthCert, Auth, Error, and the two envelopes that
// carry them. Field shapes and ordering mirror stellar-core's XDR schema so
// that a HELLO/AUTH/ERROR envelope is byte-identical to one produced by a
// real peer.
package xdr

const (
	// Uint256Size is the width of a network ID, nonce, or Curve25519 key.
	Uint256Size = 32
	// SignatureSize is the canonical width of an Ed25519 signature.
	SignatureSize = 64
	// MacSize is the width of an HMAC-SHA-256 tag.
	MacSize = 32
)

// Uint256 is a fixed 32-byte opaque, used for network IDs, nonces and
// Curve25519 public keys.
type Uint256 [Uint256Size]byte

// Mac is the fixed 32-byte HMAC-SHA-256 tag carried by AuthenticatedMessageV0.
type Mac [MacSize]byte

// MessageType is the discriminant of the StellarMessage union. Only HELLO,
// AUTH and ERROR_MSG are interpreted by this package; every other value is
// carried opaquely. Values match stellar-core's historical wire enum so that
// a decoded discriminant means the same thing on a real network.
type MessageType uint32

const (
	MsgTypeErrorMsg MessageType = 0
	MsgTypeHello    MessageType = 1
	MsgTypeAuth     MessageType = 2
	MsgTypeDontHave MessageType = 3
	MsgTypeGetPeers MessageType = 4
	MsgTypePeers    MessageType = 5
)

func (t MessageType) String() string {
	switch t {
	case MsgTypeErrorMsg:
		return "ERROR_MSG"
	case MsgTypeHello:
		return "HELLO"
	case MsgTypeAuth:
		return "AUTH"
	default:
		return "OTHER"
	}
}

// EnvelopeType is used for domain separation of signed payloads. Only the
// AUTH value is produced or consumed by this package.
type EnvelopeType uint32

const (
	EnvelopeTypeAuth EnvelopeType = 3
)

// AuthenticatedMessageVersion discriminates the AuthenticatedMessage union.
// V0 is the only version this protocol generation defines.
type AuthenticatedMessageVersion uint32

const (
	AuthenticatedMessageV0Version AuthenticatedMessageVersion = 0
)

// PublicKeyType discriminates the PublicKey union. Ed25519 is the only
// variant this protocol generation defines.
type PublicKeyType uint32

const (
	PublicKeyTypeEd25519 PublicKeyType = 0
)

// PublicKey is a discriminated union over signature-key types; only
// Ed25519 is implemented.
type PublicKey struct {
	Type    PublicKeyType
	Ed25519 Uint256
}

// Curve25519Public is an ephemeral X25519 public key as carried in an
// AuthCert.
type Curve25519Public struct {
	Key Uint256
}

// AuthCert binds an ephemeral Curve25519 public key to the signer's
// long-term identity for one hour.
type AuthCert struct {
	Pubkey     Curve25519Public
	Expiration uint64
	Sig        []byte // variable-length opaque; canonically SignatureSize bytes
}

// Hello is the first message exchanged by either side of a new connection.
type Hello struct {
	LedgerVersion     uint32
	OverlayVersion    uint32
	OverlayMinVersion uint32
	NetworkID         Uint256
	VersionStr        string
	ListeningPort     int32
	PeerID            PublicKey
	Cert              AuthCert
	Nonce             Uint256
}

// Auth is a content-free marker message; its only purpose is to carry a MAC
// once both sides have derived the shared keys.
type Auth struct {
	Unused uint32
}

// ErrorCode enumerates why a peer is closing or refusing a connection.
type ErrorCode uint32

const (
	ErrCodeMisc        ErrorCode = 0
	ErrCodeData        ErrorCode = 1
	ErrCodeConf        ErrorCode = 2
	ErrCodeAuth        ErrorCode = 3
	ErrCodeLoad        ErrorCode = 4
)

// Error is sent (unauthenticated, zero MAC) when a peer rejects a connection.
type Error struct {
	Code ErrorCode
	Msg  string
}

// RawMessage carries a StellarMessage variant this package does not
// interpret: the discriminant plus its exact encoded payload bytes,
// unmodified. This is how application-layer messages (TRANSACTION,
// SCP_MESSAGE, ...) pass through the authentication core without it
// understanding their schema.
type RawMessage struct {
	Type MessageType
	Raw  []byte
}

// StellarMessage is the application-level union. Exactly one of Hello, Auth,
// ErrorMsg or Opaque is populated, selected by Type.
type StellarMessage struct {
	Type    MessageType
	Hello   *Hello
	Auth    *Auth
	ErrorMsg *Error
	Opaque  *RawMessage
}

// HelloMessage wraps a Hello as a StellarMessage.
func HelloMessage(h Hello) StellarMessage {
	return StellarMessage{Type: MsgTypeHello, Hello: &h}
}

// AuthMessage wraps an Auth as a StellarMessage.
func AuthMessage() StellarMessage {
	return StellarMessage{Type: MsgTypeAuth, Auth: &Auth{}}
}

// ErrorMessage wraps an Error as a StellarMessage.
func ErrorMessage(code ErrorCode, msg string) StellarMessage {
	return StellarMessage{Type: MsgTypeErrorMsg, ErrorMsg: &Error{Code: code, Msg: msg}}
}

// IsHello reports whether m is a HELLO variant.
func (m StellarMessage) IsHello() bool { return m.Type == MsgTypeHello && m.Hello != nil }

// IsAuth reports whether m is an AUTH variant.
func (m StellarMessage) IsAuth() bool { return m.Type == MsgTypeAuth && m.Auth != nil }

// IsError reports whether m is an ERROR_MSG variant.
func (m StellarMessage) IsError() bool { return m.Type == MsgTypeErrorMsg && m.ErrorMsg != nil }

// AuthenticatedMessageV0 is the body of protocol version V0: a sequence
// number, the application message, and its MAC (zero for HELLO/ERROR_MSG).
type AuthenticatedMessageV0 struct {
	Sequence uint64
	Message  StellarMessage
	Mac      Mac
}

// AuthenticatedMessage is the top-level envelope placed on the wire,
// discriminated by version. V0 is the only version implemented.
type AuthenticatedMessage struct {
	Version AuthenticatedMessageVersion
	V0      *AuthenticatedMessageV0
}
