package model_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trac2github/trac2github/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `
github:
  repository: org/proj
  credentials:
    - login: migrator
      token: ghp_migrator
    - login: alice
trac:
  database: /var/trac/trac.db
users:
  tjones: alice
labels:
  priority:
    - pattern: "^high$"
      label: "prio:high"
    - pattern: "^low$"
      label: "prio:low"
`

func TestLoadConfig(t *testing.T) {
	cfg, err := model.LoadConfig(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "org/proj", cfg.GitHub.Repository)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIURL)
	require.Len(t, cfg.GitHub.Credentials, 2)
	assert.Equal(t, "migrator", cfg.GitHub.Credentials[0].Login)
	assert.Equal(t, "ghp_migrator", cfg.GitHub.Credentials[0].Token)
	assert.Empty(t, cfg.GitHub.Credentials[1].Token)
	assert.Equal(t, "/var/trac/trac.db", cfg.Trac.Database)
	assert.Equal(t, map[string]string{"tjones": "alice"}, cfg.Users)
	require.Len(t, cfg.Labels["priority"], 2)
	assert.Equal(t, "^high$", cfg.Labels["priority"][0].Pattern)
	assert.Equal(t, "migrator", cfg.DefaultActor())
}

func TestLoadConfigTrimsAPIURL(t *testing.T) {
	cfg, err := model.LoadConfig(writeConfig(t, `
github:
  repository: org/proj
  api_url: https://ghe.example.com/api/v3/
  credentials:
    - login: migrator
trac:
  database: trac.db
`))
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3", cfg.GitHub.APIURL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := model.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{
			name: "repository not owner/name",
			config: `
github:
  repository: justaname
  credentials:
    - login: migrator
trac:
  database: trac.db
`,
		},
		{
			name: "no credentials",
			config: `
github:
  repository: org/proj
trac:
  database: trac.db
`,
		},
		{
			name: "credential without login",
			config: `
github:
  repository: org/proj
  credentials:
    - token: ghp_x
trac:
  database: trac.db
`,
		},
		{
			name: "no trac database",
			config: `
github:
  repository: org/proj
  credentials:
    - login: migrator
`,
		},
		{
			name: "rule missing label",
			config: `
github:
  repository: org/proj
  credentials:
    - login: migrator
trac:
  database: trac.db
labels:
  priority:
    - pattern: "^high$"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.LoadConfig(writeConfig(t, tt.config))
			assert.Error(t, err)
		})
	}
}
