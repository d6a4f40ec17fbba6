// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docconv/internal/httputil"
	"github.com/pdiddy/docconv/internal/readiness"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the conversion service is configured and reachable",
	Long: `Check probes {service.url}/formats/ and reports whether the conversion
service can be used. Conversions are refused while the check fails.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	client := httputil.NewClient(cfg.HTTP, cfg.Service.Token)
	checker := readiness.NewChecker(client, cfg.Service.URL, cfg.Service.StrictReadiness, logger)
	verdict := checker.Check(ctx)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Service: %s\n", displayURL(cfg.Service.URL))
	fmt.Fprintf(out, "Status:  %s\n", verdict.Status)
	fmt.Fprintln(out, verdict.Advice())

	if !verdict.OK() {
		return fmt.Errorf("service not ready: %s", verdict.Message)
	}
	return nil
}

func displayURL(u string) string {
	if u == "" {
		return "(not configured)"
	}
	return u
}
