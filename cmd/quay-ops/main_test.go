package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alevsk/quay-ops/internal/config"
	"github.com/alevsk/quay-ops/internal/orchestrator"
)

type stubPrechecker struct {
	servers []string
}

func (s *stubPrechecker) CheckAll(_ context.Context, servers ...string) error {
	s.servers = append(s.servers, servers...)
	return nil
}

// execute runs the root command with args and resets the global flag
// state afterwards
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.QuayOpsConfigPathEnvVar, "")
	t.Cleanup(func() {
		configPath, debug, skipTLSVerify, failover, outputFormat = "", false, false, false, "table"
		params = orchestrator.Params{}
		autoDiscovery, skipBrokenImages = false, false
		versionOutput = "plain"
	})

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteContextC(context.Background())
	return buf.String(), err
}

func stubOrchestrator(t *testing.T) *stubPrechecker {
	t.Helper()
	stub := &stubPrechecker{}
	previous := newOrchestrator
	newOrchestrator = func(cfg *config.Config) *orchestrator.Orchestrator {
		return orchestrator.New(cfg, orchestrator.WithPrechecker(stub))
	}
	t.Cleanup(func() { newOrchestrator = previous })
	return stub
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const registriesConfig = `
primary:
  server: quay-a.example.com
secondary:
  server: quay-b.example.com
`

func TestMainExecute(t *testing.T) {
	rootCmd.SetArgs([]string{"--help"})
	main()
}

func TestVersionCmd(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{format: "plain", want: "dev (built: unknown commit: none)"},
		{format: "json", want: `"version": "dev"`},
		{format: "yaml", want: "commit: none"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := execute(t, "version", "-o", tt.format)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestOperationCommandsRegistered(t *testing.T) {
	for _, entry := range operations {
		cmd, _, err := rootCmd.Find([]string{string(entry.op)})
		require.NoError(t, err)
		assert.Equal(t, string(entry.op), cmd.Name())
	}

	cmd, _, err := rootCmd.Find([]string{"proxycache"})
	require.NoError(t, err)
	assert.NotNil(t, cmd.Flags().Lookup("overwrite"))

	cmd, _, err = rootCmd.Find([]string{"sync"})
	require.NoError(t, err)
	assert.NotNil(t, cmd.Flags().Lookup("auto-discovery"))
	assert.NotNil(t, cmd.Flags().Lookup("skip-broken-images"))
}

func TestPreflightReport(t *testing.T) {
	stub := stubOrchestrator(t)
	path := writeConfig(t, registriesConfig)

	out, err := execute(t, "preflight", "--config", path, "--output", "json", "--failover", "--skip-tls-verify")
	require.NoError(t, err)

	assert.Contains(t, out, `"operation": "preflight"`)
	assert.Equal(t, []string{"quay-a.example.com", "quay-b.example.com"}, stub.servers)
	assert.True(t, cfg.Failover)
	assert.True(t, cfg.SkipTLSVerify)
}

func TestRunSequence(t *testing.T) {
	stub := stubOrchestrator(t)
	path := writeConfig(t, registriesConfig)

	out, err := execute(t, "run", "preflight", "preflight", "--config", path, "--output", "yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "operation: preflight"))
	assert.Len(t, stub.servers, 4)
}

func TestRunOperationFlags(t *testing.T) {
	stubOrchestrator(t)
	path := writeConfig(t, registriesConfig)

	_, err := execute(t, "run", "preflight", "--config", path,
		"--auto-discovery", "--skip-broken-images", "--overwrite", "--username", "builder", "--refresh-init-config")
	require.NoError(t, err)

	assert.True(t, cfg.AutoDiscovery)
	assert.True(t, cfg.SkipBrokenImages)
	assert.Equal(t, orchestrator.Params{Overwrite: true, Username: "builder", RefreshInitConfig: true}, params)
}

func TestRunUnknownOperation(t *testing.T) {
	stubOrchestrator(t)
	path := writeConfig(t, registriesConfig)

	_, err := execute(t, "run", "preflight", "bogus", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown operation "bogus"`)
}

func TestOperationConfigurationError(t *testing.T) {
	stubOrchestrator(t)
	path := writeConfig(t, registriesConfig)

	_, err := execute(t, "sync", "--config", path, "--output", "json")
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
	assert.Equal(t, "primary.token", cfgErr.Field)
}

func TestInvalidOutputFormat(t *testing.T) {
	path := writeConfig(t, registriesConfig)

	_, err := execute(t, "preflight", "--config", path, "--output", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown formatter type")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "preflight", "--config", filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading configuration")
}
