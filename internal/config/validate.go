package config

import (
	"fmt"
	"strings"
)

// Operation names a CLI operation with its own set of required settings
type Operation string

const (
	OpSetupCluster  Operation = "setup-cluster"
	OpInitUser      Operation = "init-user"
	OpDatabaseToken Operation = "db-token"
	OpProxyCache    Operation = "proxycache"
	OpRobots        Operation = "robots"
	OpSync          Operation = "sync"
	OpOwnership     Operation = "ownership"
	OpOrganizations Operation = "organizations"
	OpPreflight     Operation = "preflight"
)

// ConfigurationError reports a missing or malformed setting. It is raised
// before any cluster or registry call is made.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func missing(field string) error {
	return &ConfigurationError{Field: field, Reason: "required but not set"}
}

// Validate checks the settings the given operation depends on
func (c *Config) Validate(op Operation) error {
	instance := Instance(c.OpenShift.Instance)
	if instance != InstancePrimary && instance != InstanceSecondary {
		return &ConfigurationError{Field: "openshift.instance", Reason: fmt.Sprintf("unknown instance %q", c.OpenShift.Instance)}
	}

	switch op {
	case OpSetupCluster:
		if c.OpenShift.ManifestSource == "" {
			return missing("openshift.manifest_source")
		}
		if c.OpenShift.InitConfig == "" {
			return missing("openshift.init_config")
		}
		if c.Rollout.MaxIterations < 1 {
			return &ConfigurationError{Field: "rollout.max_iterations", Reason: "must be at least 1"}
		}
		if c.Rollout.Delay < 0 || c.Rollout.SettleDelay < 0 {
			return &ConfigurationError{Field: "rollout.delay", Reason: "must not be negative"}
		}
	case OpInitUser:
		reg := c.Registry(instance)
		prefix := string(instance)
		if reg.Server == "" {
			return missing(prefix + ".server")
		}
		if reg.Username == "" {
			return missing(prefix + ".username")
		}
		if reg.Password == "" {
			return missing(prefix + ".password")
		}
		if reg.Email == "" {
			return missing(prefix + ".email")
		}
	case OpDatabaseToken:
		reg := c.Registry(instance)
		if reg.Server == "" {
			return missing(string(instance) + ".server")
		}
		if c.Database.Script == "" {
			return missing("database.script")
		}
		if c.OAuth.Organization == "" {
			return missing("oauth.organization")
		}
	case OpProxyCache:
		if err := c.requireToken(InstancePrimary); err != nil {
			return err
		}
		for key, pc := range c.ProxyCache {
			if pc.OrgName == "" {
				return missing("proxycache." + key + ".org_name")
			}
			if pc.UpstreamRegistry == "" {
				return missing("proxycache." + key + ".upstream_registry")
			}
		}
	case OpRobots:
		if err := c.requireToken(InstancePrimary); err != nil {
			return err
		}
		for key, r := range c.Robots {
			if r.Name == "" {
				return missing("robots." + key + ".name")
			}
			switch r.Type {
			case "org":
				if r.OrgName == "" {
					return missing("robots." + key + ".org_name")
				}
			case "personal":
			default:
				return &ConfigurationError{Field: "robots." + key + ".type", Reason: fmt.Sprintf("must be org or personal, got %q", r.Type)}
			}
		}
	case OpSync:
		if err := c.requireToken(InstancePrimary); err != nil {
			return err
		}
		if err := c.requireToken(InstanceSecondary); err != nil {
			return err
		}
		if !c.AutoDiscovery {
			for _, repo := range c.Repositories {
				if !strings.Contains(repo, "/") || !strings.Contains(repo, ":") {
					return &ConfigurationError{Field: "repositories", Reason: fmt.Sprintf("%q is not in the form org/repo:tag", repo)}
				}
			}
		}
		switch c.Transfer.Engine {
		case "docker", "registry":
		default:
			return &ConfigurationError{Field: "transfer.engine", Reason: fmt.Sprintf("unknown engine %q", c.Transfer.Engine)}
		}
		if c.Transfer.PushRetries < 0 {
			return &ConfigurationError{Field: "transfer.push_retries", Reason: "must not be negative"}
		}
	case OpOwnership, OpOrganizations:
		_, target := c.Endpoints()
		if target.Server == "" {
			return missing(c.targetInstance() + ".server")
		}
		if target.Token == "" {
			return missing(c.targetInstance() + ".token")
		}
		for i, org := range c.Organizations {
			if org.Name == "" {
				return missing(fmt.Sprintf("organizations[%d].name", i))
			}
			switch org.State {
			case "", "present", "absent":
			default:
				return &ConfigurationError{Field: fmt.Sprintf("organizations[%d].state", i), Reason: fmt.Sprintf("must be present or absent, got %q", org.State)}
			}
		}
	case OpPreflight:
		if c.Primary.Server == "" {
			return missing("primary.server")
		}
		if c.Secondary.Server == "" {
			return missing("secondary.server")
		}
	default:
		return &ConfigurationError{Field: "operation", Reason: fmt.Sprintf("unknown operation %q", op)}
	}
	return nil
}

// requireToken checks server and token of the given side after failover
// has been applied: primary means source, secondary means target.
func (c *Config) requireToken(side Instance) error {
	source, target := c.Endpoints()
	reg, name := source, c.sourceInstance()
	if side == InstanceSecondary {
		reg, name = target, c.targetInstance()
	}
	if reg.Server == "" {
		return missing(name + ".server")
	}
	if reg.Token == "" {
		return missing(name + ".token")
	}
	return nil
}

func (c *Config) sourceInstance() string {
	if c.Failover {
		return string(InstanceSecondary)
	}
	return string(InstancePrimary)
}

func (c *Config) targetInstance() string {
	if c.Failover {
		return string(InstancePrimary)
	}
	return string(InstanceSecondary)
}
