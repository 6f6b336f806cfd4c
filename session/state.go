// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

// state tracks the handshake state machine (spec §4.5):
//
//	NEW -> KEYS_DERIVED -> AUTH_SENT -> AUTHENTICATED
//
// with FAILED reachable from any non-terminal state via Peer.fail. Peer.state
// starts at its zero value, stateNew, and IsAuthenticated() is the only
// externally observable projection of it a caller needs; this small enum
// exists so Handshake's own step ordering is an explicit field write at each
// stage rather than inferred from which other fields happen to be set.
type state int

const (
	stateNew state = iota
	stateKeysDerived
	stateAuthSent
	stateAuthenticated
	stateFailed
)
