// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command stellarpeer-probe dials a single overlay peer, runs the
// authentication handshake, and reports whether it reached AUTHENTICATED.
// It is a demonstration of the session package, not an overlay manager:
// it does not discover peers, retry, or dispatch application messages.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/companyzero/stellarpeer/config"
	"github.com/companyzero/stellarpeer/identity"
	"github.com/companyzero/stellarpeer/logctx"
	"github.com/companyzero/stellarpeer/peerclient"
)

func _main() error {
	cfgFile := flag.String("cfg", "", "config file (default ~/.stellarpeer/stellarpeer.conf)")
	address := flag.String("address", "", "peer address, host:port")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *address == "" {
		return fmt.Errorf("-address is required")
	}

	settings, err := config.Load(*cfgFile)
	if err != nil {
		return err
	}

	log := logctx.New("probe", os.Stderr)
	if *debug || settings.Debug {
		log.EnableDebug()
	}

	node, err := identity.New(settings.NetworkPassphrase, settings.ListenPort)
	if err != nil {
		return fmt.Errorf("generate identity: %w", err)
	}
	defer node.Zero()

	log.Info("dialing %v as %v", *address, node.Fingerprint())

	ctx, cancel := peerclient.DefaultHandshakeContext()
	defer cancel()

	peer, err := peerclient.Connect(ctx, *address, node, log)
	if err != nil {
		return fmt.Errorf("handshake with %v: %w", *address, err)
	}
	defer peer.Close()

	log.Info("authenticated with %v, remote identity %x", *address, peer.PeerIdentity())
	fmt.Printf("AUTHENTICATED %v\n", *address)

	return nil
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := _main(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
