// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/airgapcourier/depssmuggler/pkg/courier"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search -ecosystem <eco> -query <text>",
	Short: "Search one ecosystem's catalog by name",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if *query == "" {
			log.Fatal("-query is required")
		}
		cfg := loadConfig()
		eco := courier.Ecosystem(*ecosystem)
		results, err := searcherFor(cfg, eco).Search(cmd.Context(), *query)
		if err != nil {
			log.Fatal(err)
		}
		if *limit > 0 && len(results) > *limit {
			results = results[:*limit]
		}
		b, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(b))
	},
}
