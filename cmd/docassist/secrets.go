package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"docassist/pkg/config"
)

func newSecretsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage encrypted API keys",
		Long: `Secrets are stored in .docassist/secrets.json.enc, encrypted with a password.
Set DOCASSIST_PASSWORD to avoid the prompt.`,
		Annotations: map[string]string{annotationNoConfig: "true"},
	}

	var value string
	set := &cobra.Command{
		Use:     "set <name>",
		Short:   "Store a secret",
		Example: "  docassist secrets set OPENAI_API_KEY",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := unlockForEdit(root.projectDir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if value == "" {
				if value, err = readSecretValue(cmd.InOrStdin(), cmd.ErrOrStderr(), args[0]); err != nil {
					return err
				}
			}
			if value == "" {
				return fmt.Errorf("empty value for %s", args[0])
			}
			config.SetSecret(args[0], value)
			if err := config.SaveSecretsToFile(root.projectDir, password); err != nil {
				return err //nolint:wrapcheck
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s\n", args[0])
			return nil
		},
	}
	set.Flags().StringVar(&value, "value", "", "Secret value (prompted when omitted)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored secret names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !config.SecretsFileExists(root.projectDir) {
				fmt.Fprintln(cmd.OutOrStdout(), "No secrets stored.")
				return nil
			}
			if _, err := unlockForEdit(root.projectDir, cmd.ErrOrStderr()); err != nil {
				return err
			}
			names := config.GetDecryptedSecretNames()
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !config.SecretsFileExists(root.projectDir) {
				return fmt.Errorf("no secrets stored")
			}
			password, err := unlockForEdit(root.projectDir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			config.DeleteSecret(args[0])
			if err := config.SaveSecretsToFile(root.projectDir, password); err != nil {
				return err //nolint:wrapcheck
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(set, list, del)
	return cmd
}

// unlockForEdit reads the password and loads any existing secrets into memory.
func unlockForEdit(dir string, out io.Writer) (string, error) {
	password, err := config.ReadPassword("Secrets password: ", out)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	secrets := map[string]string{}
	if config.SecretsFileExists(dir) {
		if secrets, err = config.DecryptSecretsFile(dir, password); err != nil {
			return "", err //nolint:wrapcheck
		}
	}
	config.SetDecryptedSecrets(secrets)
	return password, nil
}

// readSecretValue prompts without echo on a terminal, otherwise reads one
// line from in.
func readSecretValue(in io.Reader, out io.Writer, name string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "%s: ", name)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read value: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read value: %w", err)
	}
	return strings.TrimSpace(line), nil
}
