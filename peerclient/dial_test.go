// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peerclient

import (
	"net"
	"testing"

	"github.com/companyzero/stellarpeer/identity"
	"github.com/companyzero/stellarpeer/session"
)

func TestConnectReachesAuthenticated(t *testing.T) {
	respNode, err := identity.New("Test SDF Network ; September 2015", 11626)
	if err != nil {
		t.Fatalf("identity.New: %v", err)
	}
	initNode, err := identity.New("Test SDF Network ; September 2015", 11625)
	if err != nil {
		t.Fatalf("identity.New: %v", err)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			done <- err
			return
		}
		p, err := session.New(conn, conn.RemoteAddr().String(), session.Responder, respNode, nil)
		if err != nil {
			done <- err
			return
		}
		ctx, cancel := DefaultHandshakeContext()
		defer cancel()
		done <- p.Handshake(ctx)
	}()

	ctx, cancel := DefaultHandshakeContext()
	defer cancel()
	peer, err := Connect(ctx, l.Addr().String(), initNode, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer peer.Close()

	if !peer.IsAuthenticated() {
		t.Fatal("peer did not reach AUTHENTICATED")
	}

	if err := <-done; err != nil {
		t.Fatalf("responder handshake: %v", err)
	}
}
