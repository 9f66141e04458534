package models

import "fmt"

type Config struct {
	Snowflake    Snowflake     `yaml:"snowflake"`
	Repositories []Repository  `yaml:"repositories"`
	Run          Run           `yaml:"run"`
	Environments []Environment `yaml:"environments"`
}

type Snowflake struct {
	Account   string `yaml:"account"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Role      string `yaml:"role"`
	Warehouse string `yaml:"warehouse"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
}

// Repository is a git-hosted pipeline project the CLI can sync and run.
type Repository struct {
	Name   string `yaml:"name"`
	GitURL string `yaml:"git_url"`
	Branch string `yaml:"branch"`
	Path   string `yaml:"path"` // Local path for the synced project
}

// Run contains run-level defaults applied to every invocation.
type Run struct {
	Timeout     string `yaml:"timeout"`      // e.g., "30m"
	MaxRetries  int    `yaml:"max_retries"`  // Connection retries
	DryRun      bool   `yaml:"dry_run"`      // Compile without executing
	FailFast    bool   `yaml:"fail_fast"`    // Stop at the first model failure
	Environment string `yaml:"environment"`  // Target environment name
}

// Environment represents a target warehouse environment configuration
type Environment struct {
	Name      string `yaml:"name"`      // Environment name (e.g., "dev", "staging", "prod")
	Account   string `yaml:"account"`   // Snowflake account
	Username  string `yaml:"username"`  // Snowflake username
	Password  string `yaml:"password"`  // Snowflake password
	Database  string `yaml:"database"`  // Default database
	Schema    string `yaml:"schema"`    // Default schema
	Warehouse string `yaml:"warehouse"` // Default warehouse
	Role      string `yaml:"role"`      // Default role
	Timeout   string `yaml:"timeout"`   // Connection timeout
}

// EffectiveSnowflake returns the connection settings and run timeout with the
// active environment's overrides applied. Environment fields left empty fall
// back to the base snowflake config.
func (c *Config) EffectiveSnowflake() (Snowflake, string, error) {
	sf := c.Snowflake
	timeout := c.Run.Timeout

	if c.Run.Environment == "" {
		return sf, timeout, nil
	}

	for _, env := range c.Environments {
		if env.Name != c.Run.Environment {
			continue
		}
		overrideString(&sf.Account, env.Account)
		overrideString(&sf.Username, env.Username)
		overrideString(&sf.Password, env.Password)
		overrideString(&sf.Database, env.Database)
		overrideString(&sf.Schema, env.Schema)
		overrideString(&sf.Warehouse, env.Warehouse)
		overrideString(&sf.Role, env.Role)
		overrideString(&timeout, env.Timeout)
		return sf, timeout, nil
	}

	return sf, timeout, fmt.Errorf("environment %q is not configured", c.Run.Environment)
}

func overrideString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
