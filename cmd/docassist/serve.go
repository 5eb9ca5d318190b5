package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"docassist/pkg/api"
	"docassist/pkg/config"
	"docassist/pkg/form"
	"docassist/pkg/persistence"
	"docassist/pkg/submission"
)

const (
	defaultSessionTTL    = 7 * 24 * time.Hour
	sessionPruneInterval = time.Hour
)

type serveOptions struct {
	addr       string
	remote     bool
	sessionTTL time.Duration
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the documentation API and the web wizard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			if opts.addr != "" {
				cfg.Server.ListenAddr = opts.addr
			}
			return runServe(cmd.Context(), cfg, opts, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (overrides server.listen_addr)")
	cmd.Flags().BoolVar(&opts.remote, "remote", false, "Submit form sessions to api.base_url instead of generating in-process")
	cmd.Flags().DurationVar(&opts.sessionTTL, "session-ttl", defaultSessionTTL, "Drop form sessions idle for longer than this, at startup and hourly (0 keeps all)")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, opts *serveOptions, out io.Writer) error {
	rt, err := newRuntime(cfg, out)
	if err != nil {
		return err
	}
	defer rt.Close()

	if opts.sessionTTL > 0 {
		n, err := rt.ops.DeleteFormSessionsBefore(ctx, time.Now().Add(-opts.sessionTTL))
		if err != nil {
			rt.logger.Warn("Failed to prune form sessions: %v", err)
		} else if n > 0 {
			rt.logger.Info("Pruned %d idle form sessions", n)
		}
	}

	blobs := submission.NewMemoryBlobs()
	gen := formGenerator(cfg, rt, opts.remote)
	timeout := apiTimeout(cfg)
	sessions := form.NewSessions(func() form.Submitter {
		return submission.NewAdapter(gen, blobs,
			submission.WithTimeout(timeout),
			submission.WithObserver(rt.recorder))
	}, persistence.NewQueuedStore(rt.ops, rt.worker), form.WithObserver(rt.recorder))

	n, err := sessions.Load(ctx)
	if err != nil {
		rt.logger.Warn("Starting without stored sessions: %v", err)
	} else if n > 0 {
		rt.logger.Info("Restored %d form sessions", n)
	}

	if opts.sessionTTL > 0 {
		go sessions.RunJanitor(ctx, opts.sessionTTL, min(opts.sessionTTL, sessionPruneInterval))
	}

	serverOpts := []api.Option{
		api.WithSessions(sessions),
		api.WithBlobs(blobs),
		api.WithHistory(rt.ops),
		api.WithDefaults(cfg.Sections),
	}
	if cfg.Metrics.Enabled {
		serverOpts = append(serverOpts, api.WithMetrics(rt.recorder.Handler()))
	}
	server := api.NewServer(rt.gen, serverOpts...)

	if err := server.StartServer(ctx, cfg.Server.ListenAddr); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	fmt.Fprintf(out, "Documentation API listening on %s (wizard at /wizard)\n", cfg.Server.ListenAddr)

	<-ctx.Done()
	<-server.Done()
	return nil
}
