package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, 8080, cfg.WSPort)
	require.Equal(t, "decks/card_definitions.json", cfg.CardDefinitionsPath)
	require.Equal(t, 24, cfg.MaxNameLength)
	require.Equal(t, 60, cfg.ReconnectGraceSec)
	require.Equal(t, []string{"versus"}, cfg.GameTypes)
	require.Empty(t, cfg.AuthJWKSURL)
	require.Empty(t, cfg.DatabaseURL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WS_PORT", "9999")
	t.Setenv("CARD_DEFINITIONS_PATH", "/tmp/cards.json")
	t.Setenv("RECONNECT_GRACE_SEC", "5")
	t.Setenv("AUTH_JWKS_URL", "https://auth.example/jwks.json")

	cfg := Load()
	require.Equal(t, 9999, cfg.WSPort)
	require.Equal(t, "/tmp/cards.json", cfg.CardDefinitionsPath)
	require.Equal(t, 5, cfg.ReconnectGraceSec)
	require.Equal(t, "https://auth.example/jwks.json", cfg.AuthJWKSURL)
}

func TestInvalidEnvValueKeepsDefault(t *testing.T) {
	t.Setenv("WS_PORT", "not-a-number")
	cfg := Load()
	require.Equal(t, 8080, cfg.WSPort)
}
