// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"time"

	xdr2 "github.com/davecgh/go-xdr/xdr2"

	"github.com/companyzero/stellarpeer/identity"
	"github.com/companyzero/stellarpeer/perror"
	"github.com/companyzero/stellarpeer/xdr"
)

// certLifetime is how long a freshly minted AuthCert remains valid.
const certLifetime = time.Hour

// signingPayload builds the canonical, domain-separated byte sequence an
// AuthCert's signature covers: networkID || EnvelopeTypeAuth || expiration ||
// ephemeralPub, each XDR-serialized in order (spec §4.4, §6).
func signingPayload(networkID [32]byte, expiration uint64, ephemeralPub [32]byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr2.Marshal(&buf, xdr.Uint256(networkID)); err != nil {
		return nil, err
	}
	if _, err := xdr2.Marshal(&buf, uint32(xdr.EnvelopeTypeAuth)); err != nil {
		return nil, err
	}
	if _, err := xdr2.Marshal(&buf, expiration); err != nil {
		return nil, err
	}
	if _, err := xdr2.Marshal(&buf, xdr.Curve25519Public{Key: xdr.Uint256(ephemeralPub)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CreateAuthCert signs a fresh one-hour AuthCert binding ephemeralPub to
// node's long-term identity.
func CreateAuthCert(node *identity.LocalNode, ephemeralPub [32]byte) (xdr.AuthCert, error) {
	expiration := uint64(time.Now().Add(certLifetime).Unix())

	payload, err := signingPayload(node.NetworkID, expiration, ephemeralPub)
	if err != nil {
		return xdr.AuthCert{}, err
	}
	hash := sha256.Sum256(payload)
	sig := node.Sign(hash[:])

	return xdr.AuthCert{
		Pubkey:     xdr.Curve25519Public{Key: xdr.Uint256(ephemeralPub)},
		Expiration: expiration,
		Sig:        sig[:],
	}, nil
}

// VerifyAuthCert checks cert's expiration and its Ed25519 signature against
// peerIdentity (the remote's long-term public key, taken from its Hello's
// PeerID). A production implementation MUST perform this check; the
// reference this module is grounded on left it as a TODO (spec §9), which is
// treated here as a bug to fix, not behavior to preserve.
func VerifyAuthCert(cert xdr.AuthCert, peerIdentity [32]byte, networkID [32]byte) error {
	if uint64(time.Now().Unix()) >= cert.Expiration {
		return perror.New(perror.ProtocolViolation, "", "verify_auth_cert",
			fmt.Errorf("certificate expired at %d", cert.Expiration))
	}

	payload, err := signingPayload(networkID, cert.Expiration, [32]byte(cert.Pubkey.Key))
	if err != nil {
		return perror.New(perror.DecodeFail, "", "verify_auth_cert", err)
	}
	hash := sha256.Sum256(payload)

	if !identity.VerifyWithKey(peerIdentity, hash[:], cert.Sig) {
		return perror.New(perror.ProtocolViolation, "", "verify_auth_cert",
			fmt.Errorf("signature verification failed"))
	}
	return nil
}
