// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs a conversion service in a local container for
// development and testing. It drives the docker or podman CLI.
package container

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// Spec describes a service container to start.
type Spec struct {
	// Image is the service image reference.
	Image string

	// Name is the container name; Stop uses it to find the container.
	Name string

	// HostPort is published on 127.0.0.1 and mapped to ContainerPort.
	HostPort      int
	ContainerPort int
}

// Validate reports missing or out-of-range fields.
func (s Spec) Validate() error {
	switch {
	case strings.TrimSpace(s.Image) == "":
		return fmt.Errorf("container image is required")
	case strings.TrimSpace(s.Name) == "":
		return fmt.Errorf("container name is required")
	case s.HostPort <= 0 || s.HostPort > 65535:
		return fmt.Errorf("host port %d out of range", s.HostPort)
	case s.ContainerPort <= 0 || s.ContainerPort > 65535:
		return fmt.Errorf("container port %d out of range", s.ContainerPort)
	}
	return nil
}

// URL returns the base URL the started service answers on.
func (s Spec) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/", s.HostPort)
}

// Runtime provides the container operations the service helper needs.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available(ctx context.Context) bool

	// ImageExists checks whether the named image exists locally.
	// Returns nil when the image is found, or an error describing the failure.
	ImageExists(ctx context.Context, image string) error

	// Start runs spec detached and returns the container ID.
	Start(ctx context.Context, spec Spec) (string, error)

	// Stop stops and removes the named container.
	Stop(ctx context.Context, name string) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) (string, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (o *osExecutor) Output(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return strings.TrimSpace(string(out)), err
}

// runtime implements Runtime for a specific container binary. Docker and
// Podman differ only in binary name and the image check subcommand.
type runtime struct {
	bin           string
	imageCheckCmd []string // e.g. ["image", "inspect"] for docker
	exec          executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available(ctx context.Context) bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(ctx, r.bin, "info") == nil
}

func (r *runtime) ImageExists(ctx context.Context, image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(ctx, r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Start(ctx context.Context, spec Spec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	args := []string{
		"run", "-d", "--rm",
		"--name", spec.Name,
		"-p", fmt.Sprintf("127.0.0.1:%d:%d", spec.HostPort, spec.ContainerPort),
		spec.Image,
	}
	id, err := r.exec.Output(ctx, r.bin, args...)
	if err != nil {
		return "", fmt.Errorf("starting %s container %s: %w", r.bin, spec.Image, err)
	}
	return id, nil
}

func (r *runtime) Stop(ctx context.Context, name string) error {
	if err := r.exec.RunSilent(ctx, r.bin, "rm", "-f", name); err != nil {
		return fmt.Errorf("stopping %s container %s: %w", r.bin, name, err)
	}
	return nil
}

func newDockerRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binDocker,
		imageCheckCmd: []string{"image", "inspect"},
		exec:          exec,
	}
}

func newPodmanRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binPodman,
		imageCheckCmd: []string{"image", "exists"},
		exec:          exec,
	}
}

var defaultExec = &osExecutor{}

// DetectRuntime tries docker first, falls back to podman. Returns an error
// if neither runtime is available.
func DetectRuntime(ctx context.Context) (Runtime, error) {
	return detectRuntime(ctx, defaultExec)
}

func detectRuntime(ctx context.Context, exec executor) (Runtime, error) {
	docker := newDockerRuntime(exec)
	if docker.Available(ctx) {
		return docker, nil
	}

	podman := newPodmanRuntime(exec)
	if podman.Available(ctx) {
		return podman, nil
	}

	return nil, fmt.Errorf(
		"no container runtime available: neither %s nor %s found or operational",
		binDocker, binPodman,
	)
}
