package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docassist/pkg/submission"
	"docassist/pkg/tui"
)

func newChatCmd(root *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "chat <topic>",
		Short: "Write a README by answering follow-up questions",
		Example: `  docassist chat "a CLI that syncs dotfiles"
  docassist chat --output docs/README.md inventory service`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			restore, err := root.logToFile()
			if err != nil {
				return err
			}
			defer restore()

			out := cmd.OutOrStdout()
			rt, err := newRuntime(cfg, out)
			if err != nil {
				return err
			}
			defer rt.Close()

			chat := tui.NewChat(rt.gen, out, nil, output)
			if _, err := chat.Run(cmd.Context(), strings.Join(args, " ")); err != nil {
				if errors.Is(err, tui.ErrQuit) {
					fmt.Fprintln(out, "Interview abandoned.")
					return nil
				}
				return err //nolint:wrapcheck
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", submission.DefaultFilename, "File the README is written to")
	return cmd
}
