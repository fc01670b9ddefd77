//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline runs the CLI against the local data directory.
type Pipeline mg.Namespace

// cli runs bin/paper-search with bin/ first on PATH so it finds paper-worker.
func cli(args ...string) error {
	mg.Deps(Build, Init)
	abs, err := filepath.Abs(binDir)
	if err != nil {
		return err
	}
	env := map[string]string{"PATH": abs + string(os.PathListSeparator) + os.Getenv("PATH")}
	return sh.RunWithV(env, filepath.Join(binDir, "paper-search"), args...)
}

// Scrape fetches recent papers from every enabled source.
func (Pipeline) Scrape() error {
	return cli("scrape")
}

// Process classifies and summarizes one batch of unprocessed papers.
func (Pipeline) Process() error {
	return cli("papers", "process")
}

// Report prints a new daily digest.
func (Pipeline) Report() error {
	return cli("report", "daily")
}

// Serve runs the web API with the scheduler.
func (Pipeline) Serve() error {
	return cli("serve", "--scheduler")
}
