package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docassist/pkg/config"
	"docassist/pkg/logx"
	"docassist/pkg/persistence"
	"docassist/pkg/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	root := newRootCmd()
	root.SetOut(out)
	root.SetErr(out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func quiet(t *testing.T) {
	t.Helper()
	logx.SetOutput(&bytes.Buffer{})
	t.Cleanup(func() { logx.SetOutput(os.Stderr) })
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "wizard", "chat", "stats", "secrets", "version"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("projectdir"))
}

func TestVersion(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "version", "--projectdir", dir)
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)
	assert.NoDirExists(t, filepath.Join(dir, config.ProjectConfigDir), "version must not create config")
}

func TestSecretsLifecycle(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	t.Setenv(config.EnvSecretsPassword, "correct horse")
	t.Cleanup(func() { config.SetDecryptedSecrets(map[string]string{}) })

	out, err := execute(t, "secrets", "list", "--projectdir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No secrets stored.")

	out, err = execute(t, "secrets", "set", "OPENAI_API_KEY", "--value", "sk-test", "--projectdir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Stored OPENAI_API_KEY")
	assert.True(t, config.SecretsFileExists(dir))

	out, err = execute(t, "secrets", "list", "--projectdir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "OPENAI_API_KEY")
	assert.NotContains(t, out, "sk-test")

	stored, err := config.DecryptSecretsFile(dir, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", stored["OPENAI_API_KEY"])

	_, err = execute(t, "secrets", "delete", "OPENAI_API_KEY", "--projectdir", dir)
	require.NoError(t, err)
	stored, err = config.DecryptSecretsFile(dir, "correct horse")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSecretsSet_ReadsValueFromStdin(t *testing.T) {
	quiet(t)
	value, err := readSecretValue(strings.NewReader("sk-piped\n"), &bytes.Buffer{}, "OPENAI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-piped", value)
}

func TestSecretsSet_WrongPassword(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	t.Cleanup(func() { config.SetDecryptedSecrets(map[string]string{}) })
	require.NoError(t, config.EncryptSecretsFile(dir, "right", map[string]string{"A": "1"}))

	t.Setenv(config.EnvSecretsPassword, "wrong")
	_, err := execute(t, "secrets", "set", "B", "--value", "2", "--projectdir", dir)
	require.Error(t, err)
}

func TestStats_EmptyHistory(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	t.Cleanup(func() {
		_ = persistence.Reset()
		config.SetConfigForTesting(nil)
	})

	out, err := execute(t, "stats", "--projectdir", dir, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"history"`)
	assert.Contains(t, out, `"total": 0`)
	assert.FileExists(t, filepath.Join(dir, config.ProjectConfigDir, config.DefaultDatabaseFile))
}

func TestRootOptions_ModelOverride(t *testing.T) {
	quiet(t)
	t.Cleanup(func() { config.SetConfigForTesting(nil) })
	opts := &rootOptions{projectDir: t.TempDir(), model: "claude-sonnet-4-5"}
	require.NoError(t, opts.load())

	cfg, err := opts.config()
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", cfg.LLM.Model)

	opts.model = "not-a-model"
	_, err = opts.config()
	assert.Error(t, err)
}
