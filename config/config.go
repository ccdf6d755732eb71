package config

import (
	"encoding/json"
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// Config provides the run configuration.
type Config struct {
	// Host is the task server address.
	Host string `json:"host"`

	// APIPath is the api prefix appended to the host.
	APIPath string `json:"api_path"`

	// Username and Password are exchanged for a bearer token.
	Username string `json:"username"`
	Password string `json:"password"`

	// CollaborationID identifies the collaboration the
	// task is submitted to.
	CollaborationID int `json:"collaboration_id"`

	// Name is a human readable label for the submitted task.
	Name string `json:"name"`

	// Image is the container image that executes the task.
	Image string `json:"image"`
}

// Load parses the configuration from the file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBytes(b)
}

// ParseBytes parses the configuration from bytes b.
func ParseBytes(b []byte) (*Config, error) {
	b, err := yaml.YAMLToJSON(b)
	if err != nil {
		return nil, err
	}
	out := new(Config)
	if err := json.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate returns an error when a required field is missing.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("missing host")
	}
	if c.Username == "" {
		return errors.New("missing username")
	}
	if c.Password == "" {
		return errors.New("missing password")
	}
	if c.CollaborationID == 0 {
		return errors.New("missing collaboration id")
	}
	if c.Image == "" {
		return errors.New("missing image")
	}
	return nil
}
