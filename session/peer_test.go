// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/companyzero/stellarpeer/identity"
	"github.com/companyzero/stellarpeer/perror"
	"github.com/companyzero/stellarpeer/xdr"
)

// pairedListener hands back a listener bound to an ephemeral loopback port,
// mirroring the teacher's kx_test.go TCP harness rather than net.Pipe, so the
// framer's length-prefixed reads run over a real stream socket.
func pairedListener(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return l
}

func mustNode(t *testing.T, passphrase string, port uint16) *identity.LocalNode {
	t.Helper()
	n, err := identity.New(passphrase, port)
	if err != nil {
		t.Fatalf("identity.New: %v", err)
	}
	return n
}

// handshakePair runs the INITIATOR and RESPONDER sides of the handshake
// concurrently over a real TCP loopback connection and returns both
// authenticated peers, per spec scenario S5.
func handshakePair(t *testing.T, initNode, respNode *identity.LocalNode) (initiator, responder *Peer) {
	t.Helper()

	l := pairedListener(t)
	defer l.Close()

	eg := errgroup.Group{}
	accepted := make(chan *Peer, 1)

	eg.Go(func() error {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		p, err := New(conn, conn.RemoteAddr().String(), Responder, respNode, nil)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), DefaultHandshakeDeadline)
		defer cancel()
		if err := p.Handshake(ctx); err != nil {
			return err
		}
		accepted <- p
		return nil
	})

	initiator, err := Dial(l.Addr().String(), initNode, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultHandshakeDeadline)
	defer cancel()
	if err := initiator.Handshake(ctx); err != nil {
		t.Fatalf("initiator handshake: %v", err)
	}

	if err := eg.Wait(); err != nil {
		t.Fatalf("responder handshake: %v", err)
	}
	responder = <-accepted

	return initiator, responder
}

// TestHandshakeReachesAuthenticated is scenario S5: a correct four-envelope
// handshake (HELLO, HELLO, AUTH, AUTH) brings both sides to AUTHENTICATED
// with symmetric keys: invariant 4 says initiator.Send == responder.Recv and
// initiator.Recv == responder.Send.
func TestHandshakeReachesAuthenticated(t *testing.T) {
	initNode := mustNode(t, "Test SDF Network ; September 2015", 11625)
	respNode := mustNode(t, "Test SDF Network ; September 2015", 11626)

	initiator, responder := handshakePair(t, initNode, respNode)
	defer initiator.Close()
	defer responder.Close()

	if !initiator.IsAuthenticated() {
		t.Fatal("initiator did not reach AUTHENTICATED")
	}
	if !responder.IsAuthenticated() {
		t.Fatal("responder did not reach AUTHENTICATED")
	}

	if initiator.sendMacKey != responder.recvMacKey {
		t.Error("initiator.Send != responder.Recv")
	}
	if initiator.recvMacKey != responder.sendMacKey {
		t.Error("initiator.Recv != responder.Send")
	}

	if initiator.peerPublicKey != respNode.Public {
		t.Error("initiator did not learn the responder's identity")
	}
	if responder.peerPublicKey != initNode.Public {
		t.Error("responder did not learn the initiator's identity")
	}
}

// TestSequenceDisciplineRejectsGap checks inbound sequence continuity: an
// inbound message whose sequence number skips ahead must be rejected rather
// than silently resynced.
func TestSequenceDisciplineRejectsGap(t *testing.T) {
	initNode := mustNode(t, "Test SDF Network ; September 2015", 11627)
	respNode := mustNode(t, "Test SDF Network ; September 2015", 11628)

	initiator, responder := handshakePair(t, initNode, respNode)
	defer initiator.Close()
	defer responder.Close()

	// Send one well-formed, sequenced message to advance both sequence
	// counters from 1 (after the handshake's AUTH) to 2. AUTH is
	// MAC-protected and sequenced, unlike ERROR_MSG.
	if err := initiator.SendMessage(xdr.AuthMessage()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := responder.ReceiveMessage(); err != nil {
		t.Fatalf("receive: %v", err)
	}

	// Forge a gap: bump the initiator's send sequence without sending the
	// intervening message, then send again. The responder must reject it.
	initiator.sendSeq++
	if err := initiator.SendMessage(xdr.AuthMessage()); err != nil {
		t.Fatalf("send: %v", err)
	}

	_, err := responder.ReceiveMessage()
	if err == nil {
		t.Fatal("expected sequence gap to be rejected")
	}
	if !perror.Is(err, perror.ProtocolViolation) {
		t.Errorf("expected ProtocolViolation, got %v", err)
	}
}

// TestForgedCertificateFailsHandshake is scenario S6: an AuthCert signed by
// an identity other than the one advertised in PeerID must be rejected,
// failing the handshake outright.
func TestForgedCertificateFailsHandshake(t *testing.T) {
	respNode := mustNode(t, "Test SDF Network ; September 2015", 11630)
	forger := mustNode(t, "Test SDF Network ; September 2015", 0)

	l := pairedListener(t)
	defer l.Close()

	eg := errgroup.Group{}
	eg.Go(func() error {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		defer conn.Close()

		p, err := New(conn, conn.RemoteAddr().String(), Responder, respNode, nil)
		if err != nil {
			return err
		}
		// Tamper with the advertised PeerID after cert creation, so the
		// cert's signature no longer matches the identity it claims to
		// certify.
		p.hello.PeerID.Ed25519 = xdr.Uint256(forger.Public)

		ctx, cancel := context.WithTimeout(context.Background(), DefaultHandshakeDeadline)
		defer cancel()
		if err := p.Handshake(ctx); err == nil {
			return fmt.Errorf("expected responder handshake to fail")
		}
		return nil
	})

	initNode := mustNode(t, "Test SDF Network ; September 2015", 11629)
	initiator, err := Dial(l.Addr().String(), initNode, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer initiator.Close()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultHandshakeDeadline)
	defer cancel()
	err = initiator.Handshake(ctx)
	if err == nil {
		t.Fatal("expected initiator handshake to fail against a forged certificate")
	}
	if !perror.Is(err, perror.ProtocolViolation) {
		t.Errorf("expected ProtocolViolation, got %v", err)
	}

	if err := eg.Wait(); err != nil {
		t.Fatalf("responder: %v", err)
	}
}

// TestHandshakeDeadlineExpires confirms a silent peer causes Handshake to
// fail within its deadline rather than block forever.
func TestHandshakeDeadlineExpires(t *testing.T) {
	l := pairedListener(t)
	defer l.Close()

	eg := errgroup.Group{}
	eg.Go(func() error {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		// Accept but never speak: the initiator's deadline must fire.
		time.Sleep(300 * time.Millisecond)
		conn.Close()
		return nil
	})

	initNode := mustNode(t, "Test SDF Network ; September 2015", 11631)
	initiator, err := Dial(l.Addr().String(), initNode, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer initiator.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := initiator.Handshake(ctx); err == nil {
		t.Fatal("expected handshake to time out")
	}

	eg.Wait()
}
