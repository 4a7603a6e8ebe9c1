package config

import (
	"github.com/imposter-project/imposter-protocol/internal/schemes"
)

// Config is the content of one *-config.yaml file
type Config struct {
	PrivilegedSchemes []PrivilegedSchemes `yaml:"privilegedSchemes"`
	Protocols         []Protocol          `yaml:"protocols"`
	Scripts           []string            `yaml:"scripts"`

	// ConfigDir is the directory of the file the config was read from
	ConfigDir string `yaml:"-"`
}

// PrivilegedSchemes declares schemes and the privileges they are granted.
// Omitted privileges default to true.
type PrivilegedSchemes struct {
	Schemes    []string         `yaml:"schemes"`
	Privileges *schemes.Options `yaml:"privileges"`
}

// Protocol installs a static handler for a scheme on a session
type Protocol struct {
	Scheme    string   `yaml:"scheme"`
	Type      string   `yaml:"type"`
	Intercept bool     `yaml:"intercept"`
	Session   string   `yaml:"session"`
	Response  Response `yaml:"response"`
}

// Response is the static reply of a config-defined handler
type Response struct {
	Content    string            `yaml:"content"`
	File       string            `yaml:"file"`
	URL        string            `yaml:"url"`
	Method     string            `yaml:"method"`
	MimeType   string            `yaml:"mimeType"`
	Charset    string            `yaml:"charset"`
	StatusCode int               `yaml:"statusCode"`
	Headers    map[string]string `yaml:"headers"`
}

// ImposterConfig is the application-wide configuration
type ImposterConfig struct {
	ServerPort      string
	ConfigDirs      []string
	UpstreamTimeout string
	LogLevel        string
}
