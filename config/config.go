// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config loads the settings a stellarpeer process needs to mint a
// local identity and dial or accept peer sessions: network passphrase,
// listening port, identity file path and log file path. It is out of
// spec.md's scope (the spec names a "config loader" as an external
// collaborator) but every process built on top of session needs one, so it
// follows the teacher's own ini-based settings idiom.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mitchellh/go-homedir"
	"github.com/vaughan0/go-ini"
)

const (
	defaultDir        = ".stellarpeer"
	defaultConfigFile = "stellarpeer.conf"
	defaultIdentity   = "identity.dat"
	defaultLogFile    = "stellarpeer.log"

	// DefaultNetworkPassphrase selects the public Stellar network when no
	// passphrase is configured (spec.md §6, scenario S1).
	DefaultNetworkPassphrase = "Public Global Stellar Network ; September 2015"
)

// Settings holds everything a stellarpeer process needs at startup.
type Settings struct {
	Home string // user home directory, for reference/export only

	NetworkPassphrase string
	ListenPort        uint16
	IdentityFile      string
	LogFile           string
	Debug             bool
}

// defaultConfigPath returns ~/.stellarpeer/stellarpeer.conf.
func defaultConfigPath(home string) string {
	return filepath.Join(home, defaultDir, defaultConfigFile)
}

// Load reads settings from filename, defaulting to
// ~/.stellarpeer/stellarpeer.conf when filename is empty. Missing keys fall
// back to defaults; a missing file is not an error unless filename was
// explicitly supplied.
func Load(filename string) (*Settings, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	s := &Settings{
		Home:              home,
		NetworkPassphrase: DefaultNetworkPassphrase,
		ListenPort:        11625,
		IdentityFile:      filepath.Join(home, defaultDir, defaultIdentity),
		LogFile:           filepath.Join(home, defaultDir, defaultLogFile),
		Debug:             false,
	}

	explicit := filename != ""
	if filename == "" {
		filename = defaultConfigPath(home)
	}

	cfg, err := ini.LoadFile(filename)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return s, nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if v, ok := cfg.Get("", "networkpassphrase"); ok {
		s.NetworkPassphrase = v
	}

	if v, ok := cfg.Get("", "listenport"); ok {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("config: listenport: %w", err)
		}
		s.ListenPort = uint16(port)
	}

	if v, ok := cfg.Get("", "identityfile"); ok {
		s.IdentityFile = v
	}
	s.IdentityFile, err = homedir.Expand(s.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if v, ok := cfg.Get("log", "logfile"); ok {
		s.LogFile = v
	}
	s.LogFile, err = homedir.Expand(s.LogFile)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if v, ok := cfg.Get("log", "debug"); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: log.debug: %w", err)
		}
		s.Debug = debug
	}

	return s, nil
}
