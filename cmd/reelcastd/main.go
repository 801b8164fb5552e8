package main

import (
	"context"
	"errors"
	"log"
	"os"

	"reelcast/internal/config"
	"reelcast/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load(os.Getenv("REELCAST_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("reelcastd: %v", err)
	}
}
