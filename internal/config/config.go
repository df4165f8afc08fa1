// Package config loads the gateway configuration from the environment. It is
// read once at startup and never re-read.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full startup configuration of the gateway process.
type Config struct {
	// Port the unified GraphQL endpoint listens on.
	Port int `envconfig:"GATEWAY_PORT" default:"4000"`

	// IOPackages names the remote function packages whose schema fragments
	// are composed into the gateway, in merge order.
	IOPackages []string `envconfig:"IO_PACKAGES"`

	// FunctionRegistryURL is the base URL of the function runtime that hosts
	// the IO packages. Required when IOPackages is non-empty.
	FunctionRegistryURL string `envconfig:"FUNCTION_REGISTRY_URL"`

	// LegacyGraphQLURL is the monolith GraphQL endpoint. Empty disables
	// legacy proxying.
	LegacyGraphQLURL string `envconfig:"LEGACY_GRAPHQL_URL"`

	CatalogHost string `envconfig:"CATALOG_HOST" default:"127.0.0.1"`
	CatalogPort int    `envconfig:"CATALOG_PORT" default:"9500"`

	DelegateTimeout time.Duration `envconfig:"DELEGATE_TIMEOUT" default:"10s"`
	CatalogTimeout  time.Duration `envconfig:"CATALOG_TIMEOUT" default:"5s"`

	// IntrospectionRetries bounds the startup introspection backoff against
	// the legacy endpoint.
	IntrospectionRetries uint64 `envconfig:"INTROSPECTION_RETRIES" default:"3"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("GATEWAY_PORT %d out of range", c.Port)
	}
	if len(c.IOPackages) > 0 && c.FunctionRegistryURL == "" {
		return fmt.Errorf("IO_PACKAGES set but FUNCTION_REGISTRY_URL is empty")
	}
	if c.FunctionRegistryURL != "" {
		if _, err := url.ParseRequestURI(c.FunctionRegistryURL); err != nil {
			return fmt.Errorf("FUNCTION_REGISTRY_URL: %w", err)
		}
	}
	if c.LegacyGraphQLURL != "" {
		if _, err := url.ParseRequestURI(c.LegacyGraphQLURL); err != nil {
			return fmt.Errorf("LEGACY_GRAPHQL_URL: %w", err)
		}
	}
	if c.CatalogPort <= 0 || c.CatalogPort > 65535 {
		return fmt.Errorf("CATALOG_PORT %d out of range", c.CatalogPort)
	}
	return nil
}

// CatalogAddr returns the host:port dial target of the catalog backend.
func (c Config) CatalogAddr() string {
	return fmt.Sprintf("%s:%d", c.CatalogHost, c.CatalogPort)
}

// ListenAddr returns the bind address of the HTTP listener.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}
