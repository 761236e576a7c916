package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"albumpress/internal/bootstrap"
	"albumpress/internal/infra"
	"albumpress/internal/runner"
)

type errorPayload struct {
	runner.Summary
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func main() {
	poll := flag.Bool("poll", false, "keep polling for jobs instead of processing one and exiting")
	flag.Parse()

	infra.LoadEnvFiles()

	cfg, err := infra.LoadConfig()
	if err != nil {
		writeJSON(errorPayload{Error: fmt.Sprintf("configuration: %v", err)})
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		writeJSON(errorPayload{Error: err.Error()})
		os.Exit(1)
	}
	defer deps.Close()

	if *poll {
		if err := deps.Runner.Poll(ctx, cfg.WorkerPollEvery); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("worker: stopped with error")
			deps.Close()
			os.Exit(1)
		}
		logger.Info().Msg("worker: stopped")
		return
	}

	summary, err := deps.Runner.RunOnce(ctx)
	if err != nil {
		payload := errorPayload{Summary: summary, Error: err.Error()}
		var jobErr *runner.JobError
		if errors.As(err, &jobErr) {
			payload.Stage = jobErr.Stage
		}
		writeJSON(payload)
		deps.Close()
		os.Exit(1)
	}
	writeJSON(summary)
}

func writeJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(v)
}
