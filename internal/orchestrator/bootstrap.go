package orchestrator

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path"
	"strings"

	"github.com/alevsk/quay-ops/internal/config"
	"github.com/alevsk/quay-ops/internal/ingestor"
	"github.com/alevsk/quay-ops/internal/logger"
	"github.com/alevsk/quay-ops/internal/quay"
	"github.com/alevsk/quay-ops/internal/rollout"
	"github.com/alevsk/quay-ops/internal/types"
)

const (
	// TokenPlaceholder, ClientIDPlaceholder and UsernamePlaceholder are
	// replaced in the database token script
	TokenPlaceholder    = "<TOKEN>"
	ClientIDPlaceholder = "<CLIENT_ID>"
	UsernamePlaceholder = "<USERNAME>"

	tokenLength   = 40
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	scriptDir     = "/tmp"
)

// ErrNoToken is returned when the registry answers without an access token
var ErrNoToken = errors.New("registry returned no access token")

// GenerateToken returns a random alphanumeric token
func GenerateToken() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(tokenAlphabet)))
	for i := 0; i < tokenLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generating token: %w", err)
		}
		b.WriteByte(tokenAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func (o *Orchestrator) setupCluster(ctx context.Context, report *types.Report, params Params) error {
	kube, err := o.newCluster(o.cfg)
	if err != nil {
		return fmt.Errorf("connecting to cluster: %w", err)
	}
	ns := o.cfg.OpenShift.Namespace

	if params.RefreshInitConfig {
		if err := kube.ReplaceSecretFromFile(ctx, o.cfg.OpenShift.InitSecretName, ns, rollout.InitConfigKey, o.cfg.OpenShift.InitConfig); err != nil {
			return fmt.Errorf("replacing %s: %w", o.cfg.OpenShift.InitSecretName, err)
		}
		logger.Info().Str("secret", o.cfg.OpenShift.InitSecretName).Str("namespace", ns).Msg("init config replaced")
		report.Add(types.Step{Entity: o.cfg.OpenShift.InitSecretName, Kind: "Secret", Action: types.ActionUpdated})
	}

	opts := ingestor.DefaultOptions()
	opts.Namespace = ns
	result, err := ingestor.New(opts).Ingest(ctx, o.cfg.OpenShift.ManifestSource)
	if err != nil {
		return fmt.Errorf("reading manifests: %w", err)
	}
	logger.Info().Int("manifests", len(result.Manifests)).Str("renderer", result.Renderer).Msg("manifests loaded")

	engine := rollout.New(kube, rollout.DefaultRules(o.cfg, kube),
		rollout.WithSleep(o.sleep),
		rollout.WithReport(report),
		rollout.WithNamespace(ns),
	)
	return engine.Run(ctx, result.Manifests)
}

// initUser creates the first user of the configured instance and stores
// its access token
func (o *Orchestrator) initUser(ctx context.Context, report *types.Report) error {
	instance := config.Instance(o.cfg.OpenShift.Instance)
	reg := *o.cfg.Registry(instance)
	if reg.Token != "" {
		logger.Info().Str("instance", string(instance)).Msg("token already configured, skipping user initialization")
		report.Add(types.Step{Entity: reg.Username, Kind: "User", Action: types.ActionSkipped, Detail: "token configured"})
		return nil
	}
	if err := o.requirePersistence(); err != nil {
		return err
	}

	client, err := o.newRegistry(reg, o.cfg.SkipTLSVerify)
	if err != nil {
		return err
	}
	user, err := client.InitializeUser(ctx, quay.InitialUser{
		Username:    reg.Username,
		Password:    reg.Password,
		Email:       reg.Email,
		AccessToken: true,
	})
	if err != nil {
		logger.Error().Err(err).Str("user", reg.Username).Str("server", reg.Server).Msg("user initialization failed")
		return fmt.Errorf("initializing %s: %w", reg.Username, err)
	}
	if user.AccessToken == "" {
		return ErrNoToken
	}
	report.Add(types.Step{Entity: reg.Username, Kind: "User", Action: types.ActionCreated})

	return o.storeToken(instance, user.AccessToken, report)
}

// databaseToken inserts a freshly minted OAuth token straight into the
// registry database for an instance whose first user already exists
func (o *Orchestrator) databaseToken(ctx context.Context, report *types.Report) error {
	instance := config.Instance(o.cfg.OpenShift.Instance)
	reg := *o.cfg.Registry(instance)
	if reg.Token != "" {
		logger.Info().Str("instance", string(instance)).Msg("token already configured, skipping token insertion")
		report.Add(types.Step{Entity: string(instance), Kind: "Token", Action: types.ActionSkipped, Detail: "token configured"})
		return nil
	}
	if err := o.requirePersistence(); err != nil {
		return err
	}

	client, err := o.newRegistry(reg, o.cfg.SkipTLSVerify)
	if err != nil {
		return err
	}
	clientID, err := o.oauthClientID(ctx, client, report)
	if err != nil {
		return err
	}

	token, err := o.newToken()
	if err != nil {
		return err
	}
	script, err := renderScript(o.cfg.Database.Script, map[string]string{
		TokenPlaceholder:    token,
		ClientIDPlaceholder: clientID,
		UsernamePlaceholder: reg.Username,
	})
	if err != nil {
		return err
	}
	defer os.Remove(script)

	kube, err := o.newCluster(o.cfg)
	if err != nil {
		return fmt.Errorf("connecting to cluster: %w", err)
	}
	db := o.cfg.Database
	pod, err := kube.FindPod(ctx, db.Namespace, db.PodSelector)
	if err != nil {
		return fmt.Errorf("finding database pod: %w", err)
	}
	remote := path.Join(scriptDir, "quay-ops-token.sql")
	if err := kube.CopyFileToPod(ctx, script, pod, db.Namespace, db.Container, remote); err != nil {
		return fmt.Errorf("copying token script: %w", err)
	}
	out, err := kube.ExecInPod(ctx, pod, db.Namespace, db.Container, []string{"psql", "-d", db.Database, "-f", remote})
	if err != nil {
		logger.Error().Err(err).Str("pod", pod).Str("namespace", db.Namespace).Msg("token script failed")
		return fmt.Errorf("running token script: %w", err)
	}
	logger.Debug().Str("pod", pod).Bytes("output", out).Msg("token script finished")
	report.Add(types.Step{Entity: pod, Kind: "Token", Action: types.ActionCreated})

	return o.storeToken(instance, token, report)
}

// oauthClientID returns the client id of the configured OAuth application,
// creating the application when it does not exist
func (o *Orchestrator) oauthClientID(ctx context.Context, client Registry, report *types.Report) (string, error) {
	org, name := o.cfg.OAuth.Organization, o.cfg.OAuth.Application
	apps, err := client.ListApplications(ctx, org)
	if err != nil {
		return "", fmt.Errorf("listing applications of %s: %w", org, err)
	}
	for _, app := range apps {
		if app.Name == name {
			logger.Info().Str("organization", org).Str("application", name).Msg("application exists")
			report.Add(types.Step{Entity: org + "/" + name, Kind: "Application", Action: types.ActionSkipped})
			return app.ClientID, nil
		}
	}

	app, err := client.CreateApplication(ctx, org, name, "quay-ops")
	if err != nil {
		return "", fmt.Errorf("creating application %s: %w", name, err)
	}
	logger.Info().Str("organization", org).Str("application", name).Msg("application created")
	report.Add(types.Step{Entity: org + "/" + name, Kind: "Application", Action: types.ActionCreated})
	return app.ClientID, nil
}

// renderScript writes a copy of the script at src with the placeholders
// replaced and returns its path
func renderScript(src string, values map[string]string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("reading token script: %w", err)
	}
	pairs := make([]string, 0, 2*len(values))
	for placeholder, value := range values {
		pairs = append(pairs, placeholder, value)
	}
	rendered := strings.NewReplacer(pairs...).Replace(string(data))

	f, err := os.CreateTemp("", "quay-ops-*.sql")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(rendered); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (o *Orchestrator) requirePersistence() error {
	if o.cfg.Path() == "" {
		return &config.ConfigurationError{Field: "config", Reason: "a configuration file is required to store the minted token"}
	}
	return nil
}

// storeToken writes the token under <instance>.token and reloads the
// configuration so later phases build their clients with it
func (o *Orchestrator) storeToken(instance config.Instance, token string, report *types.Report) error {
	key := string(instance) + ".token"
	if err := config.Persist(o.cfg.Path(), key, token); err != nil {
		return err
	}
	cfg, err := config.Load(o.cfg.Path())
	if err != nil {
		return fmt.Errorf("reloading configuration: %w", err)
	}
	carryOverrides(o.cfg, cfg)
	o.cfg = cfg

	logger.Info().Str("key", key).Str("config", cfg.Path()).Msg("token stored")
	report.Add(types.Step{Entity: key, Kind: "Config", Action: types.ActionUpdated})
	return nil
}

// carryOverrides keeps the command line switches across a reload
func carryOverrides(from, to *config.Config) {
	to.Debug = to.Debug || from.Debug
	to.Failover = to.Failover || from.Failover
	to.SkipTLSVerify = to.SkipTLSVerify || from.SkipTLSVerify
	to.SkipBrokenImages = to.SkipBrokenImages || from.SkipBrokenImages
	to.AutoDiscovery = to.AutoDiscovery || from.AutoDiscovery
}
