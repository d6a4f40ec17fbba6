// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docconv/internal/capability"
	"github.com/pdiddy/docconv/internal/httputil"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the document formats the service supports",
	Args:  cobra.NoArgs,
	RunE:  runFormats,
}

func init() {
	formatsCmd.Flags().Bool("json", false, "output formats as JSON")
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	client := httputil.NewClient(cfg.HTTP, cfg.Service.Token)
	cache := capability.New(client, cfg.Service.URL, capability.WithLogger(logger))
	formats, err := cache.SupportedFormats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(formats)
	}

	fmt.Fprintf(out, "%-8s  %-40s  %s\n", "Ext", "Name", "MIME type")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, f := range formats {
		fmt.Fprintf(out, "%-8s  %-40s  %s\n", f.Extension, truncate(f.Name, 40), f.MimeType)
	}
	fmt.Fprintf(out, "\nSupported: %s\n", strings.Join(cache.Extensions(ctx), ", "))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
