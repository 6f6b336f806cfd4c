// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peerclient is a thin demonstration layer over session.Peer: dial
// one address, run the handshake, hand back an authenticated peer or an
// error. It deliberately stops there — discovery, connection pooling and
// message dispatch belong to the out-of-scope overlay manager (spec.md §1).
package peerclient

import (
	"context"

	"github.com/companyzero/stellarpeer/identity"
	"github.com/companyzero/stellarpeer/logctx"
	"github.com/companyzero/stellarpeer/session"
)

// Connect dials address, derives a fresh ephemeral key pair under node, and
// drives the INITIATOR handshake to completion within deadline. On success
// the returned Peer is ready for SendMessage/ReceiveMessage.
func Connect(ctx context.Context, address string, node *identity.LocalNode, log *logctx.Logger) (*session.Peer, error) {
	p, err := session.Dial(address, node, log)
	if err != nil {
		return nil, err
	}

	if err := p.Handshake(ctx); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// DefaultHandshakeContext returns a context bounded by
// session.DefaultHandshakeDeadline, for callers that don't already have one
// tied to a larger operation.
func DefaultHandshakeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), session.DefaultHandshakeDeadline)
}
