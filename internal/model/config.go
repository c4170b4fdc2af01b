package model

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Credential is one GitHub identity the migration may act as. The
// first credential in the config is the default actor, used whenever a
// legacy author has no mapping of its own.
type Credential struct {
	// Login is the GitHub account login.
	Login string `mapstructure:"login" yaml:"login"`

	// Token is the personal access token for Login. May be left
	// empty in the config file, in which case it is looked up in the
	// system keyring under the login.
	Token string `mapstructure:"token" yaml:"token"`
}

// LabelRule is one (pattern, label) pair of a category's ordered rule
// list. Pattern is a regular expression matched against the legacy
// field value; Label is the GitHub label applied on a match.
type LabelRule struct {
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
	Label   string `mapstructure:"label" yaml:"label"`
}

// GitHubConfig holds the target-side settings.
type GitHubConfig struct {
	// Repository is the target repository as "owner/name".
	Repository string `mapstructure:"repository" yaml:"repository"`

	// APIURL is the REST API base URL. Defaults to the public
	// GitHub endpoint; override for GitHub Enterprise.
	APIURL string `mapstructure:"api_url" yaml:"api_url"`

	// Credentials is the ordered list of identities to act as.
	Credentials []Credential `mapstructure:"credentials" yaml:"credentials"`
}

// TracConfig holds the legacy-side settings.
type TracConfig struct {
	// Database is the path to the Trac SQLite database file.
	Database string `mapstructure:"database" yaml:"database"`
}

// Config is the top-level migration configuration.
type Config struct {
	GitHub GitHubConfig `mapstructure:"github" yaml:"github"`
	Trac   TracConfig   `mapstructure:"trac" yaml:"trac"`

	// Users maps legacy Trac usernames to GitHub logins. Names
	// absent from the map are treated as external identities.
	Users map[string]string `mapstructure:"users" yaml:"users"`

	// Labels holds the per-category ordered label rule lists, keyed
	// by field category (priority, type, component, version,
	// resolution).
	Labels map[string][]LabelRule `mapstructure:"labels" yaml:"labels"`
}

// DefaultActor returns the login of the first configured credential.
func (c *Config) DefaultActor() string {
	if len(c.GitHub.Credentials) == 0 {
		return ""
	}
	return c.GitHub.Credentials[0].Login
}

// LoadConfig reads the migration configuration from the given YAML
// file using Viper and validates it. Unlike a cache or preferences
// file, a missing or malformed config is an error: the migration
// cannot run without a repository and credentials.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("github.api_url", "https://api.github.com")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	cfg.GitHub.APIURL = strings.TrimRight(cfg.GitHub.APIURL, "/")
	return cfg, nil
}

// validate checks the structural requirements that the migration
// cannot start without.
func (c *Config) validate() error {
	owner, name, ok := strings.Cut(c.GitHub.Repository, "/")
	if !ok || owner == "" || name == "" {
		return fmt.Errorf("github.repository must be \"owner/name\", got %q", c.GitHub.Repository)
	}

	if len(c.GitHub.Credentials) == 0 {
		return fmt.Errorf("github.credentials must list at least one identity")
	}
	for i, cred := range c.GitHub.Credentials {
		if cred.Login == "" {
			return fmt.Errorf("github.credentials[%d]: login is required", i)
		}
	}

	if c.Trac.Database == "" {
		return fmt.Errorf("trac.database is required")
	}

	for category, rules := range c.Labels {
		if len(rules) == 0 {
			return fmt.Errorf("labels.%s: empty rule list", category)
		}
		for i, r := range rules {
			if r.Pattern == "" || r.Label == "" {
				return fmt.Errorf("labels.%s[%d]: pattern and label are both required", category, i)
			}
		}
	}

	return nil
}
