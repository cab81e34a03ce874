package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/docker/docker/api/types/container"

	"github.com/bdobrica/opentainer/internal/opentainer/engine"
	"github.com/bdobrica/opentainer/internal/opentainer/envelope"
	"github.com/bdobrica/opentainer/internal/opentainer/ident"
)

// StatsResult is the per-container element of a batch stats response.
type StatsResult struct {
	ID      string                   `json:"id"`
	Success bool                     `json:"success"`
	Data    *container.StatsResponse `json:"data,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

// BatchStats fetches one non-streaming stats sample per container,
// dispatching all requests concurrently. Result order is arbitrary. A
// per-container failure lands in that element; only validation failures
// or an unreachable engine fail the whole call.
func (s *Service) BatchStats(ctx context.Context, ids []string) envelope.Response {
	cli, err := s.engine.Client(ctx)
	if err != nil {
		return envelope.Err(err.Error())
	}
	for _, id := range ids {
		if err := ident.Validate(id); err != nil {
			return envelope.Err(err.Error())
		}
	}

	results := make(chan StatsResult, len(ids))
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			results <- statsOne(ctx, cli, id)
		}(id)
	}
	wg.Wait()
	close(results)

	out := make([]StatsResult, 0, len(ids))
	for res := range results {
		out = append(out, res)
	}
	return envelope.OK(out)
}

func statsOne(ctx context.Context, cli engine.API, id string) StatsResult {
	reader, err := cli.ContainerStats(ctx, id, false)
	if err != nil {
		return StatsResult{ID: id, Error: err.Error()}
	}
	defer reader.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(reader.Body).Decode(&stats); err != nil {
		if errors.Is(err, io.EOF) {
			return StatsResult{ID: id, Error: "No stats found"}
		}
		return StatsResult{ID: id, Error: err.Error()}
	}
	return StatsResult{ID: id, Success: true, Data: &stats}
}
