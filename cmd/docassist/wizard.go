package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"docassist/pkg/config"
	"docassist/pkg/form"
	"docassist/pkg/submission"
	"docassist/pkg/tui"
)

type wizardOptions struct {
	output     string
	remote     bool
	accessible bool
}

func newWizardCmd(root *rootOptions) *cobra.Command {
	opts := &wizardOptions{}
	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "Fill the documentation form in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			restore, err := root.logToFile()
			if err != nil {
				return err
			}
			defer restore()
			return runWizard(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", submission.DefaultFilename, "File the README is written to")
	cmd.Flags().BoolVar(&opts.remote, "remote", false, "Submit to api.base_url instead of generating locally")
	cmd.Flags().BoolVar(&opts.accessible, "accessible", false, "Use line-based prompts for screen readers")
	return cmd
}

func runWizard(ctx context.Context, cfg config.Config, opts *wizardOptions, out io.Writer) error {
	var rt *runtime
	if !opts.remote {
		var err error
		if rt, err = newRuntime(cfg, out); err != nil {
			return err
		}
		defer rt.Close()
	}

	var subOpts []submission.Option
	if rt != nil {
		subOpts = append(subOpts, submission.WithObserver(rt.recorder))
	}
	subOpts = append(subOpts, submission.WithTimeout(apiTimeout(cfg)))
	adapter := submission.NewAdapter(formGenerator(cfg, rt, opts.remote), submission.NewMemoryBlobs(), subOpts...)
	defer adapter.Release()

	ctrl := form.NewController(cfg.Sections, adapter)
	wz := tui.NewWizard(ctrl,
		tui.WithOutput(out),
		tui.WithOutputPath(opts.output),
		tui.WithAccessible(opts.accessible))

	if _, err := wz.Run(ctx); err != nil {
		if errors.Is(err, tui.ErrQuit) {
			fmt.Fprintln(out, "No README written.")
			return nil
		}
		return err //nolint:wrapcheck
	}
	return nil
}
