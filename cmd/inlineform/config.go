package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-inlineform/pkg/api"
	"github.com/goliatone/go-inlineform/pkg/definition"
	"github.com/goliatone/go-inlineform/pkg/live"
)

// Config is the YAML file shared by every command.
type Config struct {
	// Definitions is a directory of JSON/YAML form definitions, relative to
	// the config file.
	Definitions string        `yaml:"definitions"`
	OpenAPI     OpenAPIConfig `yaml:"openapi"`
	Server      ServerConfig  `yaml:"server"`
	Client      ClientConfig  `yaml:"client"`
	Live        LiveConfig    `yaml:"live"`

	dir string
}

// OpenAPIConfig derives a definition from an operation request body.
type OpenAPIConfig struct {
	File      string `yaml:"file"`
	Operation string `yaml:"operation"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	Database       string `yaml:"database"`
	BasePath       string `yaml:"basePath"`
	PublicURL      string `yaml:"publicUrl"`
	Secret         string `yaml:"secret"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
	// Collections maps a record collection to a definition id.
	Collections map[string]string `yaml:"collections"`
}

type ClientConfig struct {
	Environment api.Environment `yaml:",inline"`
	Token       string          `yaml:"token"`
	// TokenSubject issues a token signed with server.secret when Token is
	// empty. Meant for local development against the reference server.
	TokenSubject string `yaml:"tokenSubject"`
	Definition   string `yaml:"definition"`
	ParseDates   bool   `yaml:"parseDates"`
	// RollbackOnError restores the submitted baseline after a failed save.
	RollbackOnError bool `yaml:"rollbackOnError"`
}

type LiveConfig struct {
	Disabled bool `yaml:"disabled"`
	// Endpoint defaults to "live" under the client base URL.
	Endpoint         string        `yaml:"endpoint"`
	ReconnectTimeout time.Duration `yaml:"reconnectTimeout"`
	PingTimeout      time.Duration `yaml:"pingTimeout"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:     ":8080",
			Database: "inlineform.db",
			BasePath: "/api",
		},
		Client: ClientConfig{
			Environment: api.DefaultOptions().Environment,
		},
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		cfg.dir = "."
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	if cfg.Client.Environment.AccessTokenKey == "" {
		cfg.Client.Environment.AccessTokenKey = "Authorization"
	}
	return cfg, nil
}

// resolve makes path relative to the config file.
func (c Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.dir, path)
}

// definitions loads the definition directory and the OpenAPI operation, if
// configured, into one store.
func (c Config) definitions(ctx context.Context) (*definition.Store, error) {
	store, err := definition.NewStore()
	if err != nil {
		return nil, err
	}
	if c.Definitions != "" {
		loaded, err := definition.LoadFS(os.DirFS(c.resolve(c.Definitions)))
		if err != nil {
			return nil, err
		}
		for _, id := range loaded.IDs() {
			def, _ := loaded.Get(id)
			if err := store.Add(def); err != nil {
				return nil, err
			}
		}
	}
	if c.OpenAPI.File != "" {
		if c.OpenAPI.Operation == "" {
			return nil, errors.New("openapi.operation is required with openapi.file")
		}
		data, err := os.ReadFile(c.resolve(c.OpenAPI.File))
		if err != nil {
			return nil, fmt.Errorf("read openapi: %w", err)
		}
		def, err := definition.FromOpenAPI(ctx, data, c.OpenAPI.Operation)
		if err != nil {
			return nil, err
		}
		if err := store.Add(def); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (c Config) liveSettings(token string) *live.Settings {
	settings := live.DefaultSettings()
	if c.Live.ReconnectTimeout > 0 {
		settings.ReconnectTimeout = c.Live.ReconnectTimeout
	}
	if c.Live.PingTimeout > 0 {
		settings.PingTimeout = c.Live.PingTimeout
	}
	if token != "" {
		settings.Header = map[string][]string{
			c.Client.Environment.AccessTokenKey: {c.Client.Environment.BearerPrefix + token},
		}
	}
	return settings
}

func (c Config) liveEndpoint() string {
	if c.Live.Endpoint != "" {
		return c.Live.Endpoint
	}
	return strings.TrimRight(c.Client.Environment.BaseURL, "/") + "/live"
}
