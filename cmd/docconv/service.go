// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/docconv/internal/container"
	"github.com/pdiddy/docconv/internal/httputil"
	"github.com/pdiddy/docconv/internal/logging"
	"github.com/pdiddy/docconv/internal/readiness"
	"github.com/pdiddy/docconv/pkg/types"
)

const (
	defaultStartTimeout = 2 * time.Minute
	readyPollInterval   = 2 * time.Second
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Run a conversion service in a local container",
	Long: `Service starts or stops a conversion web service in a local docker or
podman container, published on 127.0.0.1. Set local.image to the service
image. After start, point service.url at the printed URL.`,
}

var serviceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the local conversion service and wait until it is ready",
	Args:  cobra.NoArgs,
	RunE:  runServiceStart,
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop and remove the local conversion service",
	Args:  cobra.NoArgs,
	RunE:  runServiceStop,
}

func init() {
	serviceStartCmd.Flags().String("image", "", "service image (overrides local.image)")
	serviceStartCmd.Flags().Duration("timeout", defaultStartTimeout, "how long to wait for the service to answer")

	serviceCmd.AddCommand(serviceStartCmd)
	serviceCmd.AddCommand(serviceStopCmd)
	rootCmd.AddCommand(serviceCmd)
}

func localSpec(c types.LocalServiceConfig) container.Spec {
	return container.Spec{
		Image:         c.Image,
		Name:          c.Name,
		HostPort:      c.Port,
		ContainerPort: c.ContainerPort,
	}
}

func runServiceStart(cmd *cobra.Command, args []string) error {
	local := cfg.Local
	if image, _ := cmd.Flags().GetString("image"); image != "" {
		local.Image = image
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	spec := localSpec(local)
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("%w (set local.image or --image)", err)
	}

	ctx, cancel := commandContext()
	defer cancel()

	rt, err := container.DetectRuntime(ctx)
	if err != nil {
		return err
	}
	if err := rt.ImageExists(ctx, spec.Image); err != nil {
		logger.Info("image not present locally; the runtime will pull it", zap.String("image", spec.Image))
	}

	id, err := rt.Start(ctx, spec)
	if err != nil {
		return err
	}
	logger.Info("service container started",
		zap.String("runtime", rt.Name()), zap.String("id", id), zap.String(logging.FieldURL, spec.URL()))

	// Probe failures are expected while the service boots.
	checker := readiness.NewChecker(httputil.NewClient(cfg.HTTP, cfg.Service.Token), spec.URL(), true, nil)
	waitCtx, waitCancel := context.WithTimeout(ctx, timeout)
	defer waitCancel()
	if err := waitReady(waitCtx, checker, readyPollInterval); err != nil {
		return fmt.Errorf("service started but not ready: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Service ready at %s\n", spec.URL())
	fmt.Fprintf(out, "Use it with: export DOCCONV_SERVICE_URL=%s\n", spec.URL())
	return nil
}

// waitReady probes until the checker reports ok or ctx ends.
func waitReady(ctx context.Context, checker *readiness.Checker, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		v := checker.Check(ctx)
		if v.OK() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", v.Message, ctx.Err())
		case <-ticker.C:
		}
	}
}

func runServiceStop(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	rt, err := container.DetectRuntime(ctx)
	if err != nil {
		return err
	}
	if err := rt.Stop(ctx, cfg.Local.Name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s\n", cfg.Local.Name)
	return nil
}
