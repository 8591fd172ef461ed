package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secreto-de-prueba")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 5, cfg.NumeracionMaxReintentos)
	assert.Equal(t, 100, cfg.HistorialMaxPageSize)
	assert.Equal(t, 600, cfg.RateLimitPerMinute)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("JWT_SECRET", "secreto-de-prueba")
	t.Setenv("PORT", "9090")
	t.Setenv("HISTORIAL_MAX_PAGE_SIZE", "25")
	t.Setenv("NUMERACION_MAX_REINTENTOS", "8")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 25, cfg.HistorialMaxPageSize)
	assert.Equal(t, 8, cfg.NumeracionMaxReintentos)
}

func TestLoad_SinSecreto(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_SecretoCortoEnProduccion(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "corto")

	_, err := Load()
	assert.Error(t, err)
}
