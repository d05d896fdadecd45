package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CMS_URL", "")
	t.Setenv("VITE_CMS_URL", "")
	t.Setenv("LOG_MODE", "")
	t.Setenv("LISTEN_ADDRESS", "")

	p := writeConfig(t, "cms:\n  base_url: https://cms.example.com\n")
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.CMS.Timeout)
	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
	assert.Equal(t, "/api/AboutSection?depth=1", cfg.CMS.Endpoints.About)
	assert.Equal(t, "/api/events?limit=10&depth=1", cfg.CMS.Endpoints.Events)
	assert.Equal(t, "/api/BrandsSection?depth=1", cfg.CMS.Endpoints.Brands)
	assert.Equal(t, "/api/catalog?depth=1", cfg.CMS.Endpoints.Catalog)
	assert.Equal(t, "development", cfg.Log.Mode)
	assert.Equal(t, 10*time.Minute, cfg.Contact.DedupTTL)
}

func TestLoad_FileValuesWin(t *testing.T) {
	t.Setenv("CMS_URL", "")
	t.Setenv("VITE_CMS_URL", "")

	p := writeConfig(t, `
cms:
  base_url: http://localhost:3000
  timeout: 3s
  endpoints:
    brands: /api/brands
server:
  listen_address: ":9000"
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.CMS.Timeout)
	assert.Equal(t, "/api/brands", cfg.CMS.Endpoints.Brands)
	assert.Equal(t, ":9000", cfg.Server.ListenAddress)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("CMS_URL overrides file", func(t *testing.T) {
		t.Setenv("CMS_URL", "https://env.example.com")
		t.Setenv("VITE_CMS_URL", "")
		p := writeConfig(t, "cms:\n  base_url: https://file.example.com\n")
		cfg, err := Load(p)
		require.NoError(t, err)
		assert.Equal(t, "https://env.example.com", cfg.CMS.BaseURL)
	})

	t.Run("VITE_CMS_URL used when CMS_URL empty", func(t *testing.T) {
		t.Setenv("CMS_URL", "")
		t.Setenv("VITE_CMS_URL", "https://vite.example.com")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "https://vite.example.com", cfg.CMS.BaseURL)
	})

	t.Run("LOG_MODE", func(t *testing.T) {
		t.Setenv("CMS_URL", "https://env.example.com")
		t.Setenv("LOG_MODE", "production")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.Log.Mode)
	})
}

func TestValidate(t *testing.T) {
	t.Setenv("CMS_URL", "")
	t.Setenv("VITE_CMS_URL", "")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrNoBaseURL)

	p := writeConfig(t, "cms:\n  base_url: cms.example.com\n")
	_, err = Load(p)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestValidate_Endpoints(t *testing.T) {
	t.Setenv("CMS_URL", "")
	t.Setenv("VITE_CMS_URL", "")

	for name, body := range map[string]string{
		"absolute":   "    events: https://elsewhere.example/api/events\n",
		"bad escape": "    about: \"%zz\"\n",
		"host only":  "    brands: //elsewhere.example/api/brands\n",
	} {
		t.Run(name, func(t *testing.T) {
			p := writeConfig(t, "cms:\n  base_url: https://cms.example.com\n  endpoints:\n"+body)
			_, err := Load(p)
			assert.Error(t, err)
		})
	}

	ep := Endpoints{About: "/a", Events: "/e", Brands: "/b", Catalog: "/c", Progress: "/p",
		Login: "/l", Notifications: "/n", AboutAdmin: "/a", EventsAdmin: "/e", BrandsAdmin: "/b"}
	require.NoError(t, ep.Validate())
	ep.Catalog = "  "
	assert.Error(t, ep.Validate(), "empty endpoints are rejected when Validate is called directly")
}
