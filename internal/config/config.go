package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	QuayOpsConfigPathEnvVar = "QUAY_OPS_CONFIG_PATH" // Environment variable for config path
)

// Instance names one of the two registry deployments.
type Instance string

const (
	InstancePrimary   Instance = "primary"
	InstanceSecondary Instance = "secondary"
)

// Registry holds connection and credential settings for one registry instance
type Registry struct {
	Server   string `mapstructure:"server"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Email    string `mapstructure:"email"`
	// Token is the OAuth token used against the management API. It is
	// written back by init-user and db-token.
	Token string `mapstructure:"token"`
}

// Robot describes a robot account that should exist on the target registry
type Robot struct {
	// Type is either "org" or "personal"
	Type        string `mapstructure:"type"`
	OrgName     string `mapstructure:"org_name"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// ProxyCache describes the pull-through cache of one organization
type ProxyCache struct {
	OrgName                  string `mapstructure:"org_name"`
	UpstreamRegistry         string `mapstructure:"upstream_registry"`
	UpstreamRegistryUsername string `mapstructure:"upstream_registry_username"`
	UpstreamRegistryPassword string `mapstructure:"upstream_registry_password"`
	Insecure                 bool   `mapstructure:"insecure"`
	ExpirationSeconds        int    `mapstructure:"expiration_s"`
}

// Organization is an entry of the declarative organization list
type Organization struct {
	Name string `mapstructure:"name"`
	// State is "present" or "absent"
	State string `mapstructure:"state"`
}

// PollBounds bounds a readiness poll loop
type PollBounds struct {
	MaxIterations int           `mapstructure:"max_iterations"`
	Delay         time.Duration `mapstructure:"delay"`
}

// Config holds all configuration for the application
type Config struct {
	// Debug enables verbose logging and additional debug information
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log_format"`

	Failover         bool `mapstructure:"failover"`
	SkipTLSVerify    bool `mapstructure:"skip_tls_verify"`
	SkipBrokenImages bool `mapstructure:"skip_broken_images"`
	AutoDiscovery    bool `mapstructure:"auto_discovery"`

	Primary   Registry `mapstructure:"primary"`
	Secondary Registry `mapstructure:"secondary"`

	// Repositories is the explicit mirror list in the form org/repo:tag
	Repositories  []string              `mapstructure:"repositories"`
	Organizations []Organization        `mapstructure:"organizations"`
	SuperUsers    []string              `mapstructure:"super_users"`
	Robots        map[string]Robot      `mapstructure:"robots"`
	ProxyCache    map[string]ProxyCache `mapstructure:"proxycache"`

	OAuth struct {
		Organization string `mapstructure:"organization"`
		Application  string `mapstructure:"application"`
	} `mapstructure:"oauth"`

	OpenShift struct {
		Kubeconfig       string `mapstructure:"kubeconfig"`
		Context          string `mapstructure:"context"`
		Instance         string `mapstructure:"instance"`
		ManifestSource   string `mapstructure:"manifest_source"`
		Namespace        string `mapstructure:"namespace"`
		StorageNamespace string `mapstructure:"storage_namespace"`
		InitConfig       string `mapstructure:"init_config"`
		InitSecretName   string `mapstructure:"init_secret_name"`
	} `mapstructure:"openshift"`

	Rollout struct {
		MaxIterations int                   `mapstructure:"max_iterations"`
		Delay         time.Duration         `mapstructure:"delay"`
		SettleDelay   time.Duration         `mapstructure:"settle_delay"`
		Kinds         map[string]PollBounds `mapstructure:"kinds"`
	} `mapstructure:"rollout"`

	Transfer struct {
		Engine      string `mapstructure:"engine"`
		PushRetries int    `mapstructure:"push_retries"`
	} `mapstructure:"transfer"`

	Database struct {
		Namespace   string `mapstructure:"namespace"`
		PodSelector string `mapstructure:"pod_selector"`
		Container   string `mapstructure:"container"`
		Script      string `mapstructure:"script"`
		Database    string `mapstructure:"database"`
	} `mapstructure:"database"`

	// path is the file the configuration was read from, if any
	path string
}

// Path returns the file the configuration was loaded from. It is empty
// when only defaults and environment variables were used.
func (c *Config) Path() string {
	return c.path
}

// Registry returns the settings of the named instance
func (c *Config) Registry(instance Instance) *Registry {
	if instance == InstanceSecondary {
		return &c.Secondary
	}
	return &c.Primary
}

// Endpoints returns the source and target registry for a sync run. With
// failover enabled the secondary is treated as the live source.
func (c *Config) Endpoints() (source, target Registry) {
	if c.Failover {
		return c.Secondary, c.Primary
	}
	return c.Primary, c.Secondary
}

// PollFor returns the poll bounds for a kind, falling back to the rollout
// defaults when no per-kind override exists.
func (c *Config) PollFor(kind string) PollBounds {
	bounds := PollBounds{
		MaxIterations: c.Rollout.MaxIterations,
		Delay:         c.Rollout.Delay,
	}
	override, ok := c.Rollout.Kinds[strings.ToLower(kind)]
	if !ok {
		return bounds
	}
	if override.MaxIterations > 0 {
		bounds.MaxIterations = override.MaxIterations
	}
	if override.Delay > 0 {
		bounds.Delay = override.Delay
	}
	return bounds
}

// Load initializes and returns the configuration from all sources:
// 1. Command-line flags (highest priority)
// 2. Environment variables (prefixed with QUAY_OPS_)
// 3. Configuration file (lowest priority)
func Load(configPath string) (*Config, error) {
	// Check for environment variable config path if not explicitly provided
	if configPath == "" {
		if envPath := os.Getenv(QuayOpsConfigPathEnvVar); envPath != "" {
			if _, err := os.Stat(envPath); os.IsNotExist(err) {
				return nil, fmt.Errorf("config file specified in %s not found: %s", QuayOpsConfigPathEnvVar, envPath)
			}
			configPath = envPath
		}
	} else {
		// Verify explicitly provided config file exists
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	}
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config.yml in the current directory
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("QUAY_OPS")
	v.AutomaticEnv()
	// Replace dots with underscores in env vars
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		} else if configPath != "" {
			return nil, fmt.Errorf("specified config file not found: %s", configPath)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.path = v.ConfigFileUsed()
	normalize(&config)

	return &config, nil
}

// secondsDecodeHook reads a bare number as a duration in seconds, so
// `delay: 60` means one minute. Strings with a unit such as "90s" are left
// to the standard duration hook.
func secondsDecodeHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != durationType {
			return data, nil
		}
		var seconds float64
		switch f.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			seconds = float64(reflect.ValueOf(data).Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			seconds = float64(reflect.ValueOf(data).Uint())
		case reflect.Float32, reflect.Float64:
			seconds = reflect.ValueOf(data).Float()
		case reflect.String:
			n, err := strconv.ParseFloat(strings.TrimSpace(data.(string)), 64)
			if err != nil {
				return data, nil
			}
			seconds = n
		default:
			return data, nil
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_format", "console")

	// Registry defaults
	v.SetDefault("oauth.organization", "admin")
	v.SetDefault("oauth.application", "quaysync")

	// Cluster defaults
	v.SetDefault("openshift.instance", string(InstancePrimary))
	v.SetDefault("openshift.namespace", "quay")
	v.SetDefault("openshift.storage_namespace", "openshift-storage")
	v.SetDefault("openshift.init_secret_name", "init-config-bundle-secret")

	// Rollout defaults
	v.SetDefault("rollout.max_iterations", 10)
	v.SetDefault("rollout.delay", "60s")
	v.SetDefault("rollout.settle_delay", "700s")
	v.SetDefault("rollout.kinds", map[string]interface{}{
		"subscription/odf-operator": map[string]interface{}{"max_iterations": 25},
		"machineset":                map[string]interface{}{"max_iterations": 20},
		"storagecluster":            map[string]interface{}{"max_iterations": 20},
	})

	// Transfer defaults
	v.SetDefault("transfer.engine", "docker")
	v.SetDefault("transfer.push_retries", 1)

	// Database defaults
	v.SetDefault("database.namespace", "quay")
	v.SetDefault("database.pod_selector", "quay-component=postgres")
	v.SetDefault("database.database", "quay")
}

// normalize strips what users commonly paste into server fields and
// lower-cases map keys used for lookups.
func normalize(c *Config) {
	c.Primary.Server = strings.TrimSuffix(strings.TrimSpace(c.Primary.Server), "/")
	c.Secondary.Server = strings.TrimSuffix(strings.TrimSpace(c.Secondary.Server), "/")

	if len(c.Rollout.Kinds) > 0 {
		kinds := make(map[string]PollBounds, len(c.Rollout.Kinds))
		for k, b := range c.Rollout.Kinds {
			kinds[strings.ToLower(k)] = b
		}
		c.Rollout.Kinds = kinds
	}
}
