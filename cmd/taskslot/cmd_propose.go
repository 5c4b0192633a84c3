/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/taskslot/internal/slotengine"
)

var (
	proposeFile     string
	proposeFallback string
	proposeTimezone string
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Compute slots for a task described in a YAML or JSON file",
	Long: `Run the slot engine against a self-contained request and print the result as JSON.
No database or server configuration is needed.

Example request:
  task:
    duration_minutes: 180
    due_date: 2026-03-05T17:00:00Z
    allow_split: true
  preferences:
    daily_limit_minutes: 120
    work_start: "09:00"
    work_end: "17:00"
  busy:
    - start: 2026-03-03T10:00:00Z
      end: 2026-03-03T11:00:00Z
  search_start: 2026-03-02T08:00:00Z

Examples:
  taskslot propose --file request.yaml
  cat request.yaml | taskslot propose --file -
`,
	RunE: runPropose,
}

func init() {
	proposeCmd.Flags().StringVarP(&proposeFile, "file", "f", "", "Request file (YAML or JSON), - for stdin")
	proposeCmd.Flags().StringVar(&proposeFallback, "fallback", "", "Override fallback policy (chunk or strict)")
	proposeCmd.Flags().StringVar(&proposeTimezone, "timezone", "", "Override the request timezone")
	_ = proposeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(proposeCmd)
}

func runPropose(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if proposeFile != "-" {
		f, err := os.Open(proposeFile)
		if err != nil {
			return fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		in = f
	}

	req, err := decodeRequest(in)
	if err != nil {
		return err
	}
	if proposeFallback != "" {
		req.Fallback = proposeFallback
	}
	if proposeTimezone != "" {
		req.Timezone = proposeTimezone
	}

	return propose(req, cmd.OutOrStdout())
}

// decodeRequest reads YAML. JSON parses too since it is a YAML subset.
// Preference fields left out of the file take the engine defaults.
func decodeRequest(r io.Reader) (slotengine.Request, error) {
	var req slotengine.Request
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func propose(req slotengine.Request, out io.Writer) error {
	res, err := req.Run()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
