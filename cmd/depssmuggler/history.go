// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/airgapcourier/depssmuggler/internal/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or append to the local session history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every saved session record, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store, err := history.NewStore(mustHistoryPath())
		if err != nil {
			log.Fatal(err)
		}
		entries, err := store.Load()
		if err != nil {
			log.Fatal(err)
		}
		b, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(b))
	},
}

var historySaveCmd = &cobra.Command{
	Use:   "save -file <path|->",
	Short: "Append a JSON session record to history",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var b []byte
		var err error
		if *sessionFile == "" || *sessionFile == "-" {
			b, err = io.ReadAll(os.Stdin)
		} else {
			b, err = os.ReadFile(*sessionFile)
		}
		if err != nil {
			log.Fatal(err)
		}
		if !json.Valid(b) {
			log.Fatal("session record is not valid JSON")
		}
		store, err := history.NewStore(mustHistoryPath())
		if err != nil {
			log.Fatal(err)
		}
		if err := store.Save(json.RawMessage(b)); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historySaveCmd)
}
