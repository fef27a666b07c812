// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Command depssmuggler is the air-gapped package courier CLI: it resolves
// a package's transitive dependency closure against a live registry,
// downloads every artifact in the closure, and assembles an offline
// install bundle, per spec.md's end-to-end walkthrough.
package main

import (
	"flag"
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "depssmuggler",
	Short: "Resolve, fetch, and bundle package dependencies for offline installation",
}

var (
	ecosystem   = flag.String("ecosystem", "", "package ecosystem: pip, conda, maven, npm, docker, yum, apt, apk")
	pkgName     = flag.String("package", "", "the package name (or, for maven, the group:artifact coordinate)")
	pkgVersion  = flag.String("version", "", "the package version (or docker tag)")
	targetOS    = flag.String("os", "linux", "destination OS: linux, windows, darwin")
	targetArch  = flag.String("arch", "amd64", "destination architecture: amd64, arm64, 386, arm")
	pythonVer   = flag.String("python-version", "", "destination Python version (pip only), e.g. 3.11")
	condaChan   = flag.String("conda-channel", "conda-forge", "conda channel")
	osComponent = flag.String("os-component", "main", "apt component")
	osRelease   = flag.String("os-release", "stable", "yum releasever / apk branch (apt always reads the stable distribution)")
	osRepo      = flag.String("os-repo", "main", "apk repo")

	configPath   = flag.String("config", "", "path to config.toml (default $HOME/.depssmuggler/config.toml)")
	forceRefresh = flag.Bool("force-refresh", false, "bypass the memory and disk caches and re-fetch everything from the registry")
	outputDir    = flag.String("output", "./bundle", "output bundle directory")
	format       = flag.String("format", "dir", "output format: dir, zip, tar.gz")
	concurrent   = flag.Int("concurrency", 0, "max concurrent downloads (default from config)")

	query = flag.String("query", "", "search query")
	limit = flag.Int("limit", 20, "max search results")

	sessionFile = flag.String("file", "", "path to a JSON session record (history save), or - for stdin")
)

func init() {
	resolveCmd.Flags().AddGoFlag(flag.Lookup("ecosystem"))
	resolveCmd.Flags().AddGoFlag(flag.Lookup("package"))
	resolveCmd.Flags().AddGoFlag(flag.Lookup("version"))
	resolveCmd.Flags().AddGoFlag(flag.Lookup("os"))
	resolveCmd.Flags().AddGoFlag(flag.Lookup("arch"))
	resolveCmd.Flags().AddGoFlag(flag.Lookup("python-version"))
	resolveCmd.Flags().AddGoFlag(flag.Lookup("conda-channel"))
	resolveCmd.Flags().AddGoFlag(flag.Lookup("os-component"))
	resolveCmd.Flags().AddGoFlag(flag.Lookup("os-release"))
	resolveCmd.Flags().AddGoFlag(flag.Lookup("os-repo"))
	resolveCmd.Flags().AddGoFlag(flag.Lookup("config"))
	resolveCmd.Flags().AddGoFlag(flag.Lookup("force-refresh"))

	downloadCmd.Flags().AddGoFlag(flag.Lookup("ecosystem"))
	downloadCmd.Flags().AddGoFlag(flag.Lookup("package"))
	downloadCmd.Flags().AddGoFlag(flag.Lookup("version"))
	downloadCmd.Flags().AddGoFlag(flag.Lookup("os"))
	downloadCmd.Flags().AddGoFlag(flag.Lookup("arch"))
	downloadCmd.Flags().AddGoFlag(flag.Lookup("python-version"))
	downloadCmd.Flags().AddGoFlag(flag.Lookup("conda-channel"))
	downloadCmd.Flags().AddGoFlag(flag.Lookup("os-component"))
	downloadCmd.Flags().AddGoFlag(flag.Lookup("os-release"))
	downloadCmd.Flags().AddGoFlag(flag.Lookup("os-repo"))
	downloadCmd.Flags().AddGoFlag(flag.Lookup("config"))
	downloadCmd.Flags().AddGoFlag(flag.Lookup("output"))
	downloadCmd.Flags().AddGoFlag(flag.Lookup("format"))
	downloadCmd.Flags().AddGoFlag(flag.Lookup("concurrency"))
	downloadCmd.Flags().AddGoFlag(flag.Lookup("force-refresh"))

	searchCmd.Flags().AddGoFlag(flag.Lookup("ecosystem"))
	searchCmd.Flags().AddGoFlag(flag.Lookup("query"))
	searchCmd.Flags().AddGoFlag(flag.Lookup("limit"))
	searchCmd.Flags().AddGoFlag(flag.Lookup("os"))
	searchCmd.Flags().AddGoFlag(flag.Lookup("arch"))
	searchCmd.Flags().AddGoFlag(flag.Lookup("conda-channel"))
	searchCmd.Flags().AddGoFlag(flag.Lookup("os-component"))
	searchCmd.Flags().AddGoFlag(flag.Lookup("os-release"))
	searchCmd.Flags().AddGoFlag(flag.Lookup("os-repo"))
	searchCmd.Flags().AddGoFlag(flag.Lookup("config"))
	searchCmd.Flags().AddGoFlag(flag.Lookup("force-refresh"))

	historySaveCmd.Flags().AddGoFlag(flag.Lookup("file"))

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
