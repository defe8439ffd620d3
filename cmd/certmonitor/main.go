package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/andres10976/certwatch/internal/config"
	"github.com/andres10976/certwatch/internal/lifecycle"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(lifecycle.ExitOK)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(lifecycle.ExitStartupFailure)
	}

	// stdout carries relay lines only.
	logger := config.NewLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	os.Exit(lifecycle.New(cfg, logger).Run(context.Background()))
}
