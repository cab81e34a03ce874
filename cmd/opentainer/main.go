package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bdobrica/opentainer/common/environment"
	"github.com/bdobrica/opentainer/common/version"
	"github.com/bdobrica/opentainer/internal/opentainer/app"
	"github.com/bdobrica/opentainer/internal/opentainer/config"
)

func main() {
	fmt.Printf("Opentainer Backend\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	cfgPath := environment.StringOr("OPENTAINER_CONFIG", config.DefaultPath())
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	})))

	backend := app.New(cfg)
	if err := backend.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running backend: %v\n", err)
		os.Exit(1)
	}
}
