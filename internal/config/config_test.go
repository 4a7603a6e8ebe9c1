package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadImposterConfig(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected ImposterConfig
	}{
		{
			name:     "defaults",
			env:      map[string]string{"IMPOSTER_PORT": "", "IMPOSTER_CONFIG_DIR": "", "IMPOSTER_UPSTREAM_TIMEOUT": "", "IMPOSTER_LOG_LEVEL": ""},
			expected: ImposterConfig{ServerPort: "8080"},
		},
		{
			name: "from environment",
			env: map[string]string{
				"IMPOSTER_PORT":             "9090",
				"IMPOSTER_CONFIG_DIR":       "/a, /b",
				"IMPOSTER_UPSTREAM_TIMEOUT": "5s",
				"IMPOSTER_LOG_LEVEL":        "INFO",
			},
			expected: ImposterConfig{
				ServerPort:      "9090",
				ConfigDirs:      []string{"/a", "/b"},
				UpstreamTimeout: "5s",
				LogLevel:        "INFO",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, &tt.expected, LoadImposterConfig())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app-config.yaml"), `
privilegedSchemes:
  - schemes: [app, assets]
    privileges:
      corsEnabled: false
protocols:
  - scheme: app
    type: string
    response:
      content: hello
      mimeType: text/html
      statusCode: 201
      headers:
        X-Test: yes
  - scheme: https
    type: http
    intercept: true
    session: persist:other
    response:
      url: https://example.com
scripts:
  - main.js
`)
	writeFile(t, filepath.Join(dir, "ignored.yaml"), "protocols: [{scheme: x, type: string}]")

	configs, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Len(t, configs, 1)

	cfg := configs[0]
	assert.Equal(t, dir, cfg.ConfigDir)
	require.Len(t, cfg.PrivilegedSchemes, 1)
	assert.Equal(t, []string{"app", "assets"}, cfg.PrivilegedSchemes[0].Schemes)

	privileges := cfg.PrivilegedSchemes[0].Privileges.Privileges()
	assert.False(t, privileges.CORSEnabled)
	assert.True(t, privileges.Standard)

	require.Len(t, cfg.Protocols, 2)
	assert.Equal(t, Protocol{
		Scheme: "app",
		Type:   "string",
		Response: Response{
			Content:    "hello",
			MimeType:   "text/html",
			StatusCode: 201,
			Headers:    map[string]string{"X-Test": "yes"},
		},
	}, cfg.Protocols[0])
	assert.True(t, cfg.Protocols[1].Intercept)
	assert.Equal(t, "persist:other", cfg.Protocols[1].Session)
	assert.Equal(t, []string{"main.js"}, cfg.Scripts)
}

func TestLoadConfig_Recursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "root-config.yml"), "scripts: [a.js]")
	writeFile(t, filepath.Join(dir, "sub", "child-config.json"), `{"scripts": ["b.js"]}`)

	t.Setenv("IMPOSTER_CONFIG_SCAN_RECURSIVE", "false")
	configs, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Len(t, configs, 1)

	t.Setenv("IMPOSTER_CONFIG_SCAN_RECURSIVE", "true")
	configs, err = LoadConfig(dir)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, filepath.Join(dir, "sub"), configs[1].ConfigDir)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad yaml", content: "protocols: [:"},
		{name: "missing scheme", content: "protocols: [{type: string}]"},
		{name: "unknown type", content: "protocols: [{scheme: app, type: carrier-pigeon}]"},
		{name: "empty schemes", content: "privilegedSchemes: [{privileges: {secure: true}}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "bad-config.yaml"), tt.content)
			_, err := LoadConfig(dir)
			assert.Error(t, err)
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("PROTOCOL_TEST_VALUE", "set")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "set variable", input: "content: ${env.PROTOCOL_TEST_VALUE}", expected: "content: set"},
		{name: "default used", input: "content: ${env.PROTOCOL_TEST_MISSING:-fallback}", expected: "content: fallback"},
		{name: "set variable ignores default", input: "${env.PROTOCOL_TEST_VALUE:-fallback}", expected: "set"},
		{name: "missing without default", input: "[${env.PROTOCOL_TEST_MISSING}]", expected: "[]"},
		{name: "no placeholders", input: "plain", expected: "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, substituteEnvVars(tt.input))
		})
	}
}

func TestConfig_ResolvePath(t *testing.T) {
	cfg := &Config{ConfigDir: "/srv/config"}

	path, err := cfg.ResolvePath("www/index.html")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/config", "www", "index.html"), path)

	_, err = cfg.ResolvePath("../secrets")
	assert.Error(t, err)
}
