package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/imposter-project/imposter-protocol/internal/strategy"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
	"github.com/imposter-project/imposter-protocol/pkg/utils"
	"gopkg.in/yaml.v3"
)

const defaultPort = "8080"

var envVarPattern = regexp.MustCompile(`\$\{env\.([A-Za-z0-9_]+)(:-([^}]*))?\}`)

// LoadImposterConfig loads configuration from environment variables
func LoadImposterConfig() *ImposterConfig {
	port := os.Getenv("IMPOSTER_PORT")
	if port == "" {
		port = defaultPort
	}
	return &ImposterConfig{
		ServerPort:      port,
		ConfigDirs:      utils.SplitList(os.Getenv("IMPOSTER_CONFIG_DIR")),
		UpstreamTimeout: os.Getenv("IMPOSTER_UPSTREAM_TIMEOUT"),
		LogLevel:        os.Getenv("IMPOSTER_LOG_LEVEL"),
	}
}

// LoadConfig loads all config files in the specified directory
func LoadConfig(configDir string) ([]Config, error) {
	var configs []Config

	scanRecursive := os.Getenv("IMPOSTER_CONFIG_SCAN_RECURSIVE") == "true"

	err := filepath.Walk(configDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != configDir && !scanRecursive {
			return filepath.SkipDir
		}
		if info.IsDir() || !isConfigFile(info.Name()) {
			return nil
		}

		logger.Infof("loading config file: %s", path)
		cfg, err := parseConfig(path)
		if err != nil {
			return err
		}
		cfg.ConfigDir = filepath.Dir(path)
		if err := validate(cfg); err != nil {
			return fmt.Errorf("invalid config %s: %w", path, err)
		}
		configs = append(configs, *cfg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func isConfigFile(name string) bool {
	for _, suffix := range []string{"-config.json", "-config.yaml", "-config.yml"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// parseConfig loads and parses a YAML configuration file
func parseConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	data = []byte(substituteEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	for i, p := range cfg.Protocols {
		if p.Scheme == "" {
			return fmt.Errorf("protocols[%d]: scheme is required", i)
		}
		if _, err := strategy.ParseKind(p.Type); err != nil {
			return fmt.Errorf("protocols[%d]: %w", i, err)
		}
	}
	for i, ps := range cfg.PrivilegedSchemes {
		if len(ps.Schemes) == 0 {
			return fmt.Errorf("privilegedSchemes[%d]: schemes are required", i)
		}
	}
	return nil
}

// ResolvePath resolves a file referenced by a config relative to its directory
func (c *Config) ResolvePath(path string) (string, error) {
	return utils.ValidatePath(path, c.ConfigDir)
}

// substituteEnvVars replaces ${env.VAR} and ${env.VAR:-default} with environment variable values
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if value, exists := os.LookupEnv(groups[1]); exists {
			return value
		}
		return groups[3]
	})
}
