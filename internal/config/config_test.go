package config

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "gemini-2.0-flash-001", cfg.GeminiModel)
	assert.Equal(t, 0.3, cfg.ClassifierThreshold)
	assert.Equal(t, 60, cfg.GeminiRequestsPerMinute)
	assert.True(t, cfg.IsDevelopment())
	assert.Error(t, cfg.Validate())
}

func TestFromEnvBlueprintFallback(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"BLUEPRINT_DB_HOST":     "db",
		"BLUEPRINT_DB_USERNAME": "eon",
		"BLUEPRINT_DB_PASSWORD": "secret",
		"BLUEPRINT_DB_DATABASE": "health",
	}))
	require.NoError(t, err)

	assert.Equal(t, "postgres://eon:secret@db:5432/health?search_path=public&sslmode=disable", cfg.DatabaseURL)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvBlueprintEscapesCredentials(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"BLUEPRINT_DB_HOST":     "db",
		"BLUEPRINT_DB_USERNAME": "eon",
		"BLUEPRINT_DB_PASSWORD": "p@ss/w:rd",
		"BLUEPRINT_DB_DATABASE": "health",
	}))
	require.NoError(t, err)

	u, err := url.Parse(cfg.DatabaseURL)
	require.NoError(t, err)
	pass, ok := u.User.Password()
	require.True(t, ok)
	assert.Equal(t, "p@ss/w:rd", pass)
	assert.Equal(t, "db:5432", u.Host)
	assert.Equal(t, "/health", u.Path)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"port":      {"PORT": "abc"},
		"rpm":       {"GEMINI_REQUESTS_PER_MINUTE": "0"},
		"threshold": {"CLASSIFIER_THRESHOLD": "1.5"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envMap(env))
			assert.Error(t, err)
		})
	}
}
