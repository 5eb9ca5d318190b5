package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docassist/pkg/config"
	"docassist/pkg/logx"
)

// annotationNoConfig marks commands that run without loading config.json.
const annotationNoConfig = "docassist/no-config"

const logFileName = "docassist.log"

type rootOptions struct {
	projectDir string
	model      string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "docassist",
		Short: "Generate README files from a guided questionnaire",
		Long: `docassist turns a short, configurable questionnaire into a README.md.

Run the HTTP API and web wizard with "serve", or fill the form in the
terminal with "wizard". "chat" interviews you instead of asking fixed
questions.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.debug {
				logx.SetDebug(true)
			}
			if skipsConfig(cmd) {
				return nil
			}
			return opts.load()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.projectDir, "projectdir", ".", "Directory holding the .docassist configuration")
	flags.StringVar(&opts.model, "model", "", "Override the configured model")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newWizardCmd(opts),
		newChatCmd(opts),
		newStatsCmd(opts),
		newSecretsCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationNoConfig] == "true" {
			return true
		}
	}
	return false
}

func (o *rootOptions) load() error {
	if err := config.LoadConfig(o.projectDir); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := config.GetConfig()
	if err != nil {
		return err //nolint:wrapcheck
	}
	logx.SetBufferSize(cfg.Server.LogBufferSize)
	return nil
}

// config returns the loaded configuration with command line overrides applied.
func (o *rootOptions) config() (config.Config, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return cfg, err //nolint:wrapcheck
	}
	if o.model != "" {
		if _, err := config.GetModelProvider(o.model); err != nil {
			return cfg, err //nolint:wrapcheck
		}
		cfg.LLM.Model = o.model
	}
	return cfg, nil
}

// logToFile sends log lines to .docassist/docassist.log so they do not
// draw over terminal forms. The returned func restores stderr.
func (o *rootOptions) logToFile() (func(), error) {
	dir := filepath.Join(o.projectDir, config.ProjectConfigDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logx.SetOutput(f)
	return func() {
		logx.SetOutput(os.Stderr)
		_ = f.Close()
	}, nil
}
