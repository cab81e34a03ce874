// Package commands implements the unary command surface: validated
// pass-through operations against the Engine API, each returning the
// response envelope.
package commands

import (
	"context"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"

	"github.com/bdobrica/opentainer/internal/opentainer/engine"
	"github.com/bdobrica/opentainer/internal/opentainer/envelope"
	"github.com/bdobrica/opentainer/internal/opentainer/ident"
)

// Engine provides the shared client and the socket label it was opened
// with. *engine.Manager satisfies this.
type Engine interface {
	Client(ctx context.Context) (engine.API, error)
	Path() string
}

// Service is the unary command surface.
type Service struct {
	engine Engine

	// dockerCLI runs the local docker CLI and returns its stdout.
	// Overridden in tests; the default shells out via os/exec.
	dockerCLI func(ctx context.Context, args ...string) ([]byte, error)
}

// New creates the command service on top of an engine provider.
func New(eng Engine) *Service {
	return &Service{engine: eng, dockerCLI: runDockerCLI}
}

// ListContainers returns every container, including stopped ones, as the
// engine reports them.
func (s *Service) ListContainers(ctx context.Context) envelope.Response {
	cli, err := s.engine.Client(ctx)
	if err != nil {
		return envelope.Err(err.Error())
	}
	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return envelope.Err(err.Error())
	}
	return envelope.OK(containers)
}

// ContainerAction runs one of start/stop/restart/remove against a
// container. Any other action string is rejected without touching the
// engine.
func (s *Service) ContainerAction(ctx context.Context, id, action string) envelope.Response {
	cli, err := s.engine.Client(ctx)
	if err != nil {
		return envelope.Err(err.Error())
	}
	if err := ident.Validate(id); err != nil {
		return envelope.Err(err.Error())
	}

	switch action {
	case "start":
		err = cli.ContainerStart(ctx, id, container.StartOptions{})
	case "stop":
		err = cli.ContainerStop(ctx, id, container.StopOptions{})
	case "restart":
		err = cli.ContainerRestart(ctx, id, container.StopOptions{})
	case "remove":
		err = cli.ContainerRemove(ctx, id, container.RemoveOptions{})
	default:
		return envelope.Err("Invalid action")
	}
	if err != nil {
		return envelope.Err(err.Error())
	}
	return envelope.Empty()
}

// ListImages returns the engine's image summaries with default options.
func (s *Service) ListImages(ctx context.Context) envelope.Response {
	cli, err := s.engine.Client(ctx)
	if err != nil {
		return envelope.Err(err.Error())
	}
	images, err := cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return envelope.Err(err.Error())
	}
	return envelope.OK(images)
}

// ListNetworks returns the engine's networks with default options.
func (s *Service) ListNetworks(ctx context.Context) envelope.Response {
	cli, err := s.engine.Client(ctx)
	if err != nil {
		return envelope.Err(err.Error())
	}
	networks, err := cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return envelope.Err(err.Error())
	}
	return envelope.OK(networks)
}

// RemoveImage deletes an image with default options.
func (s *Service) RemoveImage(ctx context.Context, id string) envelope.Response {
	cli, err := s.engine.Client(ctx)
	if err != nil {
		return envelope.Err(err.Error())
	}
	if err := ident.Validate(id); err != nil {
		return envelope.Err(err.Error())
	}
	if _, err := cli.ImageRemove(ctx, id, image.RemoveOptions{}); err != nil {
		return envelope.Err(err.Error())
	}
	return envelope.Empty()
}

// RemoveVolume deletes a volume with default options.
func (s *Service) RemoveVolume(ctx context.Context, name string) envelope.Response {
	cli, err := s.engine.Client(ctx)
	if err != nil {
		return envelope.Err(err.Error())
	}
	if err := ident.Validate(name); err != nil {
		return envelope.Err(err.Error())
	}
	if err := cli.VolumeRemove(ctx, name, false); err != nil {
		return envelope.Err(err.Error())
	}
	return envelope.Empty()
}
