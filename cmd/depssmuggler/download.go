// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/airgapcourier/depssmuggler/internal/history"
	"github.com/airgapcourier/depssmuggler/pkg/bundle"
	"github.com/airgapcourier/depssmuggler/pkg/courier"
	"github.com/airgapcourier/depssmuggler/pkg/orchestrator"
	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download -ecosystem <eco> -package <name> [-version <v>] -output <dir>",
	Short: "Resolve a package's closure, download every artifact, and assemble an install bundle",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if *pkgName == "" {
			log.Fatal("-package is required")
		}
		cfg := loadConfig()
		ctx := cmd.Context()

		bus := orchestrator.NewEventBus(64)
		go logEvents(bus)

		eco := courier.Ecosystem(*ecosystem)
		root := courier.PackageRef{Ecosystem: eco, Name: *pkgName, Version: *pkgVersion}
		bus.Emit(orchestrator.StatusEvent{Phase: "resolving", Message: fmt.Sprintf("resolving %s", root.Key())})
		result, err := resolveGraph(ctx, cfg, eco, *pkgName, *pkgVersion)
		if err != nil {
			log.Fatal(err)
		}
		for _, f := range result.Failed {
			log.Printf("could not resolve %s: %v", f.Ref.Name, f.Err)
		}
		bus.Emit(orchestrator.DepsResolvedEvent{
			OriginalPackages: []courier.PackageRef{root},
			AllPackages:      result.FlatList,
			DependencyTrees:  []*courier.DependencyNode{result.Root},
			FailedPackages:   result.Failed,
		})
		if len(result.FlatList) == 0 {
			log.Fatal("nothing to download: resolution produced an empty package list")
		}

		fetchers := map[courier.Ecosystem]orchestrator.Fetcher{eco: fetcherFor(cfg, eco)}
		concurrency := *concurrent
		if concurrency <= 0 {
			concurrency = cfg.Concurrency.Download
		}
		opts := orchestrator.Options{OutputDir: *outputDir, Concurrency: concurrency}

		o := orchestrator.New(bus)
		res, err := o.Run(ctx, result.FlatList, fetchers, opts)
		bus.Close()
		if err != nil {
			log.Fatal(err)
		}
		if !res.Success {
			for _, item := range res.Items {
				if !item.OK {
					log.Printf("failed: %s: %v", item.ID, item.Error)
				}
			}
		}

		if err := bundle.WriteInstallScripts(*outputDir, result.FlatList); err != nil {
			log.Fatal(err)
		}

		outPath := *outputDir
		switch bundle.Format(*format) {
		case bundle.FormatZip, bundle.FormatTarGz:
			outPath, err = bundle.Archive(*outputDir, bundle.Format(*format))
			if err != nil {
				log.Fatal(err)
			}
		}

		if store, err := history.NewStore(mustHistoryPath()); err == nil {
			if b, merr := marshalSession(eco, *pkgName, *pkgVersion, res); merr == nil {
				if serr := store.Save(b); serr != nil {
					log.Printf("saving history: %v", serr)
				}
			}
		}

		fmt.Printf("bundle written to %s (%d/%d packages succeeded)\n", outPath, successCount(res), len(res.Items))
		if !res.Success {
			os.Exit(1)
		}
	},
}

func logEvents(bus *orchestrator.EventBus) {
	for ev := range bus.Events() {
		switch e := ev.(type) {
		case orchestrator.StatusEvent:
			log.Println(e.Message)
		case orchestrator.AllCompleteEvent:
			log.Printf("download complete: success=%v", e.Success)
		}
	}
}

func successCount(res *orchestrator.Result) int {
	n := 0
	for _, item := range res.Items {
		if item.OK {
			n++
		}
	}
	return n
}

func mustHistoryPath() string {
	p, err := history.DefaultPath()
	if err != nil {
		log.Fatal(err)
	}
	return p
}

// sessionRecord is the shape persisted to history per spec.md §6's
// "history save" contract: just enough to show the operator what a past
// run fetched, not a full replayable request.
type sessionRecord struct {
	Ecosystem string   `json:"ecosystem"`
	Package   string   `json:"package"`
	Version   string   `json:"version,omitempty"`
	Success   bool     `json:"success"`
	Packages  []string `json:"packages"`
}

func marshalSession(eco courier.Ecosystem, name, version string, res *orchestrator.Result) (json.RawMessage, error) {
	rec := sessionRecord{Ecosystem: string(eco), Package: name, Version: version, Success: res.Success}
	for _, item := range res.Items {
		rec.Packages = append(rec.Packages, item.ID)
	}
	b, err := json.Marshal(rec)
	return json.RawMessage(b), err
}
