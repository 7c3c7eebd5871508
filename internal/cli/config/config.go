package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const ConfigFileName = "cursos.json"

// configFileNames are searched in order in every directory
var configFileNames = []string{ConfigFileName, "cursos.yaml", "cursos.yml"}

// ErrConfigNotFound is returned when no config file exists up to the filesystem root
var ErrConfigNotFound = errors.New("config file not found")

// AuthSettings describes the identity provider of a deployment
type AuthSettings struct {
	Domain       string   `json:"domain" yaml:"domain" validate:"required_without=Issuer"`
	Issuer       string   `json:"issuer,omitempty" yaml:"issuer,omitempty" validate:"omitempty,url"`
	ClientID     string   `json:"clientId" yaml:"clientId" validate:"required"`
	Audience     string   `json:"audience,omitempty" yaml:"audience,omitempty"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	RoleClaim    string   `json:"roleClaim,omitempty" yaml:"roleClaim,omitempty"`
	CallbackPort int      `json:"callbackPort,omitempty" yaml:"callbackPort,omitempty" validate:"gte=0,lte=65535"`
}

// IssuerURL returns the configured issuer, or the one derived from Domain
func (a AuthSettings) IssuerURL() string {
	if a.Issuer != "" {
		return a.Issuer
	}
	domain := strings.TrimSuffix(a.Domain, "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain + "/"
	}
	return "https://" + domain + "/"
}

// Server represents a course API deployment
type Server struct {
	Alias              string       `json:"alias" yaml:"alias" validate:"required"`
	URL                string       `json:"url" yaml:"url" validate:"required,url"`
	InsecureSkipVerify bool         `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
	Auth               AuthSettings `json:"auth" yaml:"auth"`
}

var validate = validator.New()

// Validate checks that the server entry is usable
func (s *Server) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("server '%s': invalid %s (%s). Please edit %s", s.Alias, fieldName(fe.Namespace()), fe.Tag(), ConfigFileName)
		}
		return err
	}
	return nil
}

// fieldName turns "Server.Auth.ClientID" into "auth.clientId"
func fieldName(namespace string) string {
	names := map[string]string{
		"Alias":        "alias",
		"URL":          "url",
		"Auth":         "auth",
		"Domain":       "domain",
		"Issuer":       "issuer",
		"ClientID":     "clientId",
		"CallbackPort": "callbackPort",
	}
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if n, ok := names[p]; ok {
			parts[i] = n
		}
	}
	return strings.Join(parts, ".")
}

// Config represents the CLI configuration file
type Config struct {
	Servers []Server `json:"servers" yaml:"servers"`
}

// FindConfigFile searches for a config file in current directory and parent directories
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	// Search upwards until we find a config file or reach root
	dir := currentDir
	for {
		for _, name := range configFileNames {
			configPath := filepath.Join(dir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%w: %s not found in %s or any parent directory", ErrConfigNotFound, ConfigFileName, currentDir)
}

// Load reads the configuration file, JSON or YAML depending on its extension
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadFromCurrentDir loads config from current directory or parent directories
func LoadFromCurrentDir() (*Config, error) {
	configPath, err := FindConfigFile()
	if err != nil {
		return nil, err
	}

	return Load(configPath)
}

// LoadFrom loads path when it is set and searches from the current directory otherwise
func LoadFrom(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	return LoadFromCurrentDir()
}

// Save writes the configuration to a file
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// GetServerByAlias returns a server by its alias
func (c *Config) GetServerByAlias(alias string) (*Server, error) {
	for i := range c.Servers {
		if c.Servers[i].Alias == alias {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("server with alias '%s' not found", alias)
}

// GetDefaultServer returns the first server in the list
func (c *Config) GetDefaultServer() (*Server, error) {
	if len(c.Servers) == 0 {
		return nil, fmt.Errorf("no servers configured in %s", ConfigFileName)
	}
	return &c.Servers[0], nil
}
