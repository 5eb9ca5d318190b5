package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"docassist/pkg/api"
	"docassist/pkg/config"
	"docassist/pkg/generator"
	"docassist/pkg/llm/factory"
	"docassist/pkg/logx"
	"docassist/pkg/metrics"
	"docassist/pkg/persistence"
	"docassist/pkg/submission"
)

// persistenceBuffer is the write queue length of the persistence worker.
const persistenceBuffer = 256

// runtime is the generation stack shared by serve, wizard and chat: the LLM
// generator, the history database and its write worker.
type runtime struct {
	cfg      config.Config
	recorder *metrics.PrometheusRecorder
	gen      *generator.Generator
	ops      *persistence.DatabaseOperations
	worker   *persistence.Worker
	stop     context.CancelFunc
	logger   *logx.Logger
}

func newRuntime(cfg config.Config, out io.Writer) (*runtime, error) {
	if err := config.UnlockSecrets(config.GetProjectDir(), out); err != nil {
		return nil, fmt.Errorf("failed to unlock secrets: %w", err)
	}
	if err := persistence.Initialize(cfg.DatabasePath()); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	rt := &runtime{
		cfg:      cfg,
		recorder: metrics.NewPrometheusRecorder(),
		ops:      persistence.Ops(),
		logger:   logx.NewLogger("docassist"),
	}
	rt.worker = persistence.NewWorker(rt.ops, persistenceBuffer)
	workerCtx, cancel := context.WithCancel(context.Background())
	rt.stop = cancel
	go rt.worker.Run(workerCtx)

	client, err := factory.New(cfg, rt.recorder).CreateClient("")
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	opts := []generator.Option{generator.WithHistory(rt.worker.Channel())}
	if cfg.LLM.MaxTokens > 0 {
		opts = append(opts, generator.WithMaxTokens(cfg.LLM.MaxTokens))
	}
	rt.gen, err = generator.New(client, opts...)
	if err != nil {
		rt.Close()
		return nil, err //nolint:wrapcheck
	}
	rt.logger.Info("Generating with %s", rt.gen.Model())
	return rt, nil
}

// Close drains queued writes and closes the database.
func (rt *runtime) Close() {
	rt.stop()
	<-rt.worker.Done()
	if err := persistence.Close(); err != nil {
		rt.logger.Warn("Failed to close database: %v", err)
	}
}

// formGenerator is what form submissions call: the remote documentation
// service when remote is set, otherwise the local generator.
func formGenerator(cfg config.Config, rt *runtime, remote bool) submission.Generator {
	if remote || rt == nil {
		return submission.NewHTTPGenerator(cfg.API.BaseURL, nil)
	}
	return api.InProcess(rt.gen)
}

func apiTimeout(cfg config.Config) time.Duration {
	return time.Duration(cfg.API.TimeoutMS) * time.Millisecond
}
