// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/airgapcourier/depssmuggler/internal/config"
	"github.com/airgapcourier/depssmuggler/pkg/courier"
	"github.com/airgapcourier/depssmuggler/pkg/registry/docker"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve -ecosystem <eco> -package <name> [-version <v>]",
	Short: "Resolve a package's transitive dependency closure and print it as JSON",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if *pkgName == "" {
			log.Fatal("-package is required")
		}
		cfg := loadConfig()
		result, err := resolveGraph(cmd.Context(), cfg, courier.Ecosystem(*ecosystem), *pkgName, *pkgVersion)
		if err != nil {
			log.Fatal(err)
		}
		if len(result.Failed) > 0 {
			for _, f := range result.Failed {
				log.Printf("could not resolve %s: %v", f.Ref.Name, f.Err)
			}
		}
		for _, c := range result.Conflicts {
			log.Printf("version conflict for %s: %v, chose %s (%s)", c.Name, c.ContendingVersions, c.Winner, c.Reason)
		}
		b, err := json.MarshalIndent(result.FlatList, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(b))
	},
}

// resolveGraph dispatches to the ecosystem-specific ResolveDependencies
// (or, for docker, synthesizes a one-package GraphResult around
// ResolveImage, since docker has no dependency tree).
func resolveGraph(ctx context.Context, cfg config.Config, eco courier.Ecosystem, name, version string) (*courier.GraphResult, error) {
	switch eco {
	case courier.Pip:
		return pypiSource(cfg).ResolveDependencies(ctx, name, version)
	case courier.NPM:
		spec := version
		if spec == "" {
			spec = "latest"
		}
		return npmSource(cfg).ResolveDependencies(ctx, name, spec)
	case courier.Maven:
		return mavenSource(cfg).ResolveDependencies(ctx, name, version)
	case courier.Conda:
		root := name
		if version != "" {
			root = name + "=" + version
		}
		return condaSource(cfg).ResolveDependencies(ctx, root)
	case courier.Docker:
		ref := dockerRef(name, version)
		pkg, err := dockerSource(cfg).ResolveImage(ctx, ref)
		if err != nil {
			return nil, err
		}
		return &courier.GraphResult{FlatList: []courier.ResolvedPackage{*pkg}}, nil
	case courier.APT:
		return aptSource(cfg).ResolveDependencies(ctx, name)
	case courier.YUM:
		return yumSource(cfg).ResolveDependencies(ctx, name)
	case courier.APK:
		return apkSource(cfg).ResolveDependencies(ctx, name)
	default:
		return nil, fmt.Errorf("unknown ecosystem %q", eco)
	}
}

func dockerRef(name, version string) docker.Ref {
	q := name
	if version != "" {
		q += ":" + version
	}
	return docker.ParseRef(q)
}
