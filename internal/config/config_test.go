package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4000, c.Port)
	assert.Empty(t, c.IOPackages)
	assert.Empty(t, c.LegacyGraphQLURL)
	assert.Equal(t, "127.0.0.1:9500", c.CatalogAddr())
	assert.Equal(t, 10*time.Second, c.DelegateTimeout)
	assert.Equal(t, 5*time.Second, c.CatalogTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_PORT", "8080")
	t.Setenv("IO_PACKAGES", "checkout,cart")
	t.Setenv("FUNCTION_REGISTRY_URL", "http://functions.local")
	t.Setenv("LEGACY_GRAPHQL_URL", "http://magento.local/graphql")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, []string{"checkout", "cart"}, c.IOPackages)
	assert.Equal(t, "0.0.0.0:8080", c.ListenAddr())
}

func TestValidate(t *testing.T) {
	t.Run("packages without registry", func(t *testing.T) {
		c := Config{Port: 4000, CatalogPort: 9500, IOPackages: []string{"checkout"}}
		assert.Error(t, c.Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		c := Config{Port: -1, CatalogPort: 9500}
		assert.Error(t, c.Validate())
	})

	t.Run("bad legacy url", func(t *testing.T) {
		c := Config{Port: 4000, CatalogPort: 9500, LegacyGraphQLURL: "not a url"}
		assert.Error(t, c.Validate())
	})
}
