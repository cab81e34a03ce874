package commands

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os/exec"

	"github.com/docker/docker/api/types/volume"

	"github.com/bdobrica/opentainer/internal/opentainer/engine"
	"github.com/bdobrica/opentainer/internal/opentainer/envelope"
)

// cliVolume is one element of `docker system df -v --format "{{json
// .Volumes}}"`. CLIs across versions emit either a nested UsageData
// object or a top-level human-readable Size plus Links count, so both
// shapes are carried.
type cliVolume struct {
	Name      string            `json:"Name"`
	UsageData *volume.UsageData `json:"UsageData"`
	Size      string            `json:"Size"`
	Links     *int64            `json:"Links"`
}

// ListVolumes lists volumes with default options and then fills in
// usage_data from the docker CLI. The Engine JSON endpoint is unreliable
// for that one field across engine versions and providers; the CLI
// reports it consistently. The augmentation is best-effort: CLI failures
// are logged and the plain listing is returned.
func (s *Service) ListVolumes(ctx context.Context) envelope.Response {
	cli, err := s.engine.Client(ctx)
	if err != nil {
		return envelope.Err(err.Error())
	}
	resp, err := cli.VolumeList(ctx, volume.ListOptions{})
	if err != nil {
		return envelope.Err(err.Error())
	}
	volumes := resp.Volumes

	s.augmentVolumeUsage(ctx, volumes)
	return envelope.OK(volumes)
}

func (s *Service) augmentVolumeUsage(ctx context.Context, volumes []*volume.Volume) {
	slog.Info("fetching volume usage data via CLI")

	var args []string
	if path := s.engine.Path(); path != engine.DefaultLabel && path != "" {
		args = append(args, "-H", "unix://"+path)
	}
	args = append(args, "system", "df", "-v", "--format", "{{json .Volumes}}")

	out, err := s.dockerCLI(ctx, args...)
	if err != nil {
		slog.Warn("docker CLI failed", "err", err)
		return
	}

	var entries []cliVolume
	if err := json.Unmarshal(out, &entries); err != nil {
		slog.Warn("could not parse CLI volume JSON", "err", err)
		return
	}
	slog.Info("volume usage items from CLI", "count", len(entries))

	for _, entry := range entries {
		if entry.Name == "" {
			continue
		}
		vol := findVolume(volumes, entry.Name)
		if vol == nil {
			continue
		}
		switch {
		case entry.UsageData != nil:
			vol.UsageData = entry.UsageData
		case entry.Size != "":
			refCount := int64(-1)
			if entry.Links != nil {
				refCount = *entry.Links
			}
			vol.UsageData = &volume.UsageData{
				Size:     parseEngineSize(entry.Size),
				RefCount: refCount,
			}
		}
	}
}

func findVolume(volumes []*volume.Volume, name string) *volume.Volume {
	for _, v := range volumes {
		if v != nil && v.Name == name {
			return v
		}
	}
	return nil
}

// runDockerCLI is the production dockerCLI implementation.
func runDockerCLI(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "docker", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			slog.Warn("docker CLI stderr", "stderr", string(exitErr.Stderr))
		}
		return nil, err
	}
	return out, nil
}
