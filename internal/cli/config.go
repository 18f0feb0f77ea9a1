package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds CLI configuration
type Config struct {
	ServerURL     string `env:"SERVER" envDefault:"http://localhost:8080"`
	Identity      string `env:"IDENTITY"`
	IdentityFile  string `env:"IDENTITY_FILE"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	Output        string `env:"OUTPUT" envDefault:"text"`
	Verbose       bool
}

// LoadConfig reads the RAFFLEGRID_ environment. Flags override it.
func LoadConfig() (*Config, error) {
	return loadConfig(env.Options{Prefix: "RAFFLEGRID_"})
}

func loadConfig(opts env.Options) (*Config, error) {
	c := &Config{}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}
	if c.IdentityFile == "" {
		c.IdentityFile = defaultIdentityFile()
	}
	return c, nil
}

// LoadIdentity loads the identity from file if not already set
func (c *Config) LoadIdentity() error {
	if c.Identity != "" {
		return nil
	}

	data, err := os.ReadFile(c.IdentityFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Created on first use
		}
		return err
	}

	c.Identity = strings.TrimSpace(string(data))
	return nil
}

// SaveIdentity saves the identity to the identity file
func (c *Config) SaveIdentity(identity string) error {
	c.Identity = identity

	dir := filepath.Dir(c.IdentityFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	return os.WriteFile(c.IdentityFile, []byte(identity+"\n"), 0600)
}

func defaultIdentityFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rafflegrid/identity"
	}
	return filepath.Join(home, ".rafflegrid", "identity")
}
