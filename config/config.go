package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
)

// Config holds all configurable server parameters.
type Config struct {
	WSPort              int    `json:"ws_port"`
	CardDefinitionsPath string `json:"card_definitions_path"`
	MaxNameLength       int    `json:"max_name_length"`

	// ReconnectGraceSec is how long after a disconnect the player's match
	// is forfeited with reason "disconnect". A new connection gets a new
	// player id and does not resume the match.
	ReconnectGraceSec int `json:"reconnect_grace_sec"`

	// AuthJWKSURL enables JWT socket auth when non-empty. Clients must then
	// send an auth message before joining matchmaking.
	AuthJWKSURL string `json:"auth_jwks_url"`

	// DatabaseURL enables the match-log store when non-empty.
	DatabaseURL string `json:"database_url"`

	// GameTypes lists the game types accepted by join_matchmaking_queue.
	GameTypes []string `json:"game_types"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		WSPort:              8080,
		CardDefinitionsPath: "decks/card_definitions.json",
		MaxNameLength:       24,
		ReconnectGraceSec:   60,
		GameTypes:           []string{"versus"},
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	cfg := Defaults()

	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			log.Printf("Warning: failed to parse config.json: %v", err)
		}
	}

	overrideInt(&cfg.WSPort, "WS_PORT")
	overrideString(&cfg.CardDefinitionsPath, "CARD_DEFINITIONS_PATH")
	overrideInt(&cfg.MaxNameLength, "MAX_NAME_LENGTH")
	overrideInt(&cfg.ReconnectGraceSec, "RECONNECT_GRACE_SEC")
	overrideString(&cfg.AuthJWKSURL, "AUTH_JWKS_URL")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")

	return cfg
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			log.Printf("Warning: invalid value for %s: %q", envKey, val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}
