package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
)

// Secrets mirrors the credentials file layout.
type Secrets struct {
	RofexUser     string `toml:"ROFEX_USER"`
	RofexPassword string `toml:"ROFEX_PASSWORD"`
	RofexAccount  string `toml:"ROFEX_ACCOUNT"`
}

// LoadSecrets decodes path. A missing file yields empty secrets.
func LoadSecrets(path string) (Secrets, error) {
	var s Secrets
	if path == "" {
		return s, nil
	}
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Secrets{}, nil
		}
		return Secrets{}, fmt.Errorf("decode secrets %s: %w", path, err)
	}
	return s, nil
}

// applySecrets fills ROFEX credentials the environment left blank.
func (c *Config) applySecrets() error {
	s, err := LoadSecrets(c.SecretsFile)
	if err != nil {
		return err
	}
	fill(&c.Rofex.User, s.RofexUser)
	fill(&c.Rofex.Password, s.RofexPassword)
	fill(&c.Rofex.Account, s.RofexAccount)
	return nil
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

const redacted = "***"

// Redacted returns a copy with credentials replaced by "***", safe to log.
func (c Config) Redacted() Config {
	out := c
	redact(&out.Rofex.Password)
	redact(&out.Redis.Password)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
