package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func TestConfigPrecedence(t *testing.T) {
	configPath := writeConfig(t, `
debug: true
primary:
  server: "quay-primary.example.com/ "
  username: admin
  token: file-token
secondary:
  server: quay-secondary.example.com
rollout:
  delay: "30s"
  kinds:
    MachineSet:
      max_iterations: 5
`)

	// Environment variables override the file
	t.Setenv("QUAY_OPS_PRIMARY_TOKEN", "env-token")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	if !cfg.Debug {
		t.Error("expected debug to be enabled from file")
	}
	if cfg.Primary.Token != "env-token" {
		t.Errorf("expected token env-token, got %s", cfg.Primary.Token)
	}
	if cfg.Primary.Server != "quay-primary.example.com" {
		t.Errorf("expected normalized server, got %q", cfg.Primary.Server)
	}
	if cfg.Rollout.Delay != 30*time.Second {
		t.Errorf("expected delay 30s, got %v", cfg.Rollout.Delay)
	}
	if cfg.Path() != configPath {
		t.Errorf("expected path %s, got %s", configPath, cfg.Path())
	}

	bounds := cfg.PollFor("MachineSet")
	if bounds.MaxIterations != 5 || bounds.Delay != 30*time.Second {
		t.Errorf("unexpected MachineSet bounds %+v", bounds)
	}
}

func TestDefaultValues(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.LogFormat != "console" {
		t.Errorf("expected log format console, got %s", cfg.LogFormat)
	}
	if cfg.OAuth.Organization != "admin" || cfg.OAuth.Application != "quaysync" {
		t.Errorf("unexpected oauth defaults %+v", cfg.OAuth)
	}
	if cfg.OpenShift.Instance != "primary" {
		t.Errorf("expected instance primary, got %s", cfg.OpenShift.Instance)
	}
	if cfg.OpenShift.InitSecretName != "init-config-bundle-secret" {
		t.Errorf("unexpected init secret name %s", cfg.OpenShift.InitSecretName)
	}
	if cfg.Rollout.MaxIterations != 10 || cfg.Rollout.Delay != time.Minute {
		t.Errorf("unexpected rollout defaults %d/%v", cfg.Rollout.MaxIterations, cfg.Rollout.Delay)
	}
	if cfg.Rollout.SettleDelay != 700*time.Second {
		t.Errorf("expected settle delay 700s, got %v", cfg.Rollout.SettleDelay)
	}
	if cfg.Transfer.Engine != "docker" || cfg.Transfer.PushRetries != 1 {
		t.Errorf("unexpected transfer defaults %+v", cfg.Transfer)
	}
	if cfg.Database.PodSelector != "quay-component=postgres" {
		t.Errorf("unexpected pod selector %s", cfg.Database.PodSelector)
	}
}

func TestPollFor(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		kind string
		want int
	}{
		{kind: "subscription/odf-operator", want: 25},
		{kind: "Subscription/ODF-Operator", want: 25},
		{kind: "MachineSet", want: 20},
		{kind: "StorageCluster", want: 20},
		{kind: "Subscription", want: 10},
		{kind: "ConfigMap", want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			got := cfg.PollFor(tt.kind)
			if got.MaxIterations != tt.want {
				t.Errorf("PollFor(%s).MaxIterations = %d, want %d", tt.kind, got.MaxIterations, tt.want)
			}
			if got.Delay != time.Minute {
				t.Errorf("PollFor(%s).Delay = %v, want 1m", tt.kind, got.Delay)
			}
		})
	}
}

func TestEndpointsFailover(t *testing.T) {
	cfg := &Config{
		Primary:   Registry{Server: "a.example", Token: "a"},
		Secondary: Registry{Server: "b.example", Token: "b"},
	}

	source, target := cfg.Endpoints()
	if source.Server != "a.example" || target.Server != "b.example" {
		t.Errorf("unexpected endpoints %s -> %s", source.Server, target.Server)
	}

	cfg.Failover = true
	source, target = cfg.Endpoints()
	if source.Server != "b.example" || target.Token != "a" {
		t.Errorf("failover did not swap endpoints: %s -> %s", source.Server, target.Server)
	}
}

func TestConfigFileValidation(t *testing.T) {
	_, err := Load("nonexistent.yml")
	if err == nil {
		t.Error("expected error for non-existent config file")
	}

	configPath := filepath.Join(t.TempDir(), "invalid/config.yml")
	_, err = Load(configPath)
	if err == nil {
		t.Error("expected error for invalid config file path")
	}

	t.Setenv(QuayOpsConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yml"))
	_, err = Load("")
	if err == nil || !strings.Contains(err.Error(), QuayOpsConfigPathEnvVar) {
		t.Errorf("expected error naming %s, got %v", QuayOpsConfigPathEnvVar, err)
	}
}

func TestInvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
rollout:
  delay: "invalid"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestDurationSeconds(t *testing.T) {
	configPath := writeConfig(t, `
rollout:
  delay: 60
  settle_delay: 700
  kinds:
    machineset:
      max_iterations: 5
      delay: 2.5
    storagecluster:
      delay: "90s"
`)
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rollout.Delay != time.Minute {
		t.Errorf("expected delay 1m, got %v", cfg.Rollout.Delay)
	}
	if cfg.Rollout.SettleDelay != 700*time.Second {
		t.Errorf("expected settle delay 700s, got %v", cfg.Rollout.SettleDelay)
	}
	if got := cfg.PollFor("MachineSet").Delay; got != 2500*time.Millisecond {
		t.Errorf("expected MachineSet delay 2.5s, got %v", got)
	}
	if got := cfg.PollFor("StorageCluster").Delay; got != 90*time.Second {
		t.Errorf("expected StorageCluster delay 90s, got %v", got)
	}

	t.Setenv("QUAY_OPS_ROLLOUT_DELAY", "45")
	cfg, err = Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rollout.Delay != 45*time.Second {
		t.Errorf("expected delay 45s from environment, got %v", cfg.Rollout.Delay)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			Primary:   Registry{Server: "a.example", Username: "admin", Password: "pw", Email: "a@example.com", Token: "ta"},
			Secondary: Registry{Server: "b.example", Token: "tb"},
		}
		cfg.OpenShift.Instance = "primary"
		cfg.OpenShift.ManifestSource = "manifests"
		cfg.OpenShift.InitConfig = "config.yaml"
		cfg.Rollout.MaxIterations = 10
		cfg.Transfer.Engine = "docker"
		cfg.Transfer.PushRetries = 1
		cfg.Database.Script = "token.sql"
		cfg.OAuth.Organization = "admin"
		return cfg
	}

	tests := []struct {
		name      string
		op        Operation
		mutate    func(*Config)
		wantField string
	}{
		{name: "setup cluster ok", op: OpSetupCluster},
		{name: "setup cluster without manifests", op: OpSetupCluster, mutate: func(c *Config) { c.OpenShift.ManifestSource = "" }, wantField: "openshift.manifest_source"},
		{name: "unknown instance", op: OpSetupCluster, mutate: func(c *Config) { c.OpenShift.Instance = "tertiary" }, wantField: "openshift.instance"},
		{name: "init user without email", op: OpInitUser, mutate: func(c *Config) { c.Primary.Email = "" }, wantField: "primary.email"},
		{name: "init user on secondary", op: OpInitUser, mutate: func(c *Config) { c.OpenShift.Instance = "secondary" }, wantField: "secondary.username"},
		{name: "sync ok", op: OpSync},
		{name: "sync without target token", op: OpSync, mutate: func(c *Config) { c.Secondary.Token = "" }, wantField: "secondary.token"},
		{name: "sync failover without source token", op: OpSync, mutate: func(c *Config) { c.Failover = true; c.Secondary.Token = "" }, wantField: "secondary.token"},
		{name: "sync malformed repository", op: OpSync, mutate: func(c *Config) { c.Repositories = []string{"org/repo"} }, wantField: "repositories"},
		{name: "sync unknown engine", op: OpSync, mutate: func(c *Config) { c.Transfer.Engine = "podman" }, wantField: "transfer.engine"},
		{name: "robot without org", op: OpRobots, mutate: func(c *Config) { c.Robots = map[string]Robot{"ci": {Type: "org", Name: "ci"}} }, wantField: "robots.ci.org_name"},
		{name: "personal robot ok", op: OpRobots, mutate: func(c *Config) { c.Robots = map[string]Robot{"ci": {Type: "personal", Name: "ci"}} }},
		{name: "proxycache without upstream", op: OpProxyCache, mutate: func(c *Config) { c.ProxyCache = map[string]ProxyCache{"hub": {OrgName: "hub"}} }, wantField: "proxycache.hub.upstream_registry"},
		{name: "organization bad state", op: OpOrganizations, mutate: func(c *Config) { c.Organizations = []Organization{{Name: "a", State: "gone"}} }, wantField: "organizations[0].state"},
		{name: "db token without script", op: OpDatabaseToken, mutate: func(c *Config) { c.Database.Script = "" }, wantField: "database.script"},
		{name: "preflight without secondary", op: OpPreflight, mutate: func(c *Config) { c.Secondary.Server = "" }, wantField: "secondary.server"},
		{name: "unknown operation", op: Operation("bogus"), wantField: "operation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.op)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("expected field %s, got %s", tt.wantField, cfgErr.Field)
			}
		})
	}
}
