// Package config loads Auth and Realm service configuration from an
// optional YAML file, overlaid with the required environment variables
// spec.md §6 names.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/realmkeep/internal/constants"
)

// Auth holds configuration for the auth service.
type Auth struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"log_level"`

	DatabaseURL          string
	ConnectTimeout        time.Duration
	ReconnectLifetime time.Duration
}

// Realm holds configuration for the realm service.
type Realm struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"log_level"`

	// AuthDatabaseURL is a read path into the auth service's database: the
	// realm service never writes accounts, only checks the session key a
	// successful logon left behind (spec.md §4.4) and reads its own realms
	// row for the address and port it listens on.
	AuthDatabaseURL  string
	RealmDatabaseURL string
	GameDatabaseURL  string
	ConnectTimeout   time.Duration
	RealmID          int64
}

// DefaultAuth returns Auth config with sensible defaults, mirroring the
// teacher's Default*() pattern.
func DefaultAuth() Auth {
	return Auth{
		BindAddress:       "0.0.0.0",
		Port:              3724,
		LogLevel:          "info",
		ReconnectLifetime: constants.DefaultReconnectLifetime,
	}
}

// DefaultRealm returns Realm config with sensible defaults.
func DefaultRealm() Realm {
	return Realm{
		BindAddress: "0.0.0.0",
		Port:        8085,
		LogLevel:    "info",
	}
}

// LoadAuth loads auth-service config from an optional YAML file at path,
// then applies the required environment variables. A missing file falls
// back to defaults (matching the teacher's LoadLoginServer); a missing or
// malformed required env var is a fatal startup error.
func LoadAuth(path string) (Auth, error) {
	cfg := DefaultAuth()

	if err := loadYAMLIfPresent(path, &cfg); err != nil {
		return cfg, err
	}

	dbURL, err := requiredEnv("AUTH_DATABASE_URL")
	if err != nil {
		return cfg, err
	}
	cfg.DatabaseURL = dbURL

	timeout, err := requiredEnvSeconds("DB_CONNECT_TIMEOUT_SECONDS")
	if err != nil {
		return cfg, err
	}
	cfg.ConnectTimeout = timeout

	if raw, ok := os.LookupEnv("AUTH_RECONNECT_LIFETIME"); ok {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("config: parsing AUTH_RECONNECT_LIFETIME: %w", err)
		}
		cfg.ReconnectLifetime = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}

// LoadRealm loads realm-service config the same way LoadAuth does.
func LoadRealm(path string) (Realm, error) {
	cfg := DefaultRealm()

	if err := loadYAMLIfPresent(path, &cfg); err != nil {
		return cfg, err
	}

	authDB, err := requiredEnv("AUTH_DATABASE_URL")
	if err != nil {
		return cfg, err
	}
	cfg.AuthDatabaseURL = authDB

	realmDB, err := requiredEnv("REALM_DATABASE_URL")
	if err != nil {
		return cfg, err
	}
	cfg.RealmDatabaseURL = realmDB

	gameDB, err := requiredEnv("GAME_DATABASE_URL")
	if err != nil {
		return cfg, err
	}
	cfg.GameDatabaseURL = gameDB

	timeout, err := requiredEnvSeconds("DB_CONNECT_TIMEOUT_SECONDS")
	if err != nil {
		return cfg, err
	}
	cfg.ConnectTimeout = timeout

	realmIDRaw, err := requiredEnv("REALM_ID")
	if err != nil {
		return cfg, err
	}
	realmID, err := strconv.ParseInt(realmIDRaw, 10, 64)
	if err != nil {
		return cfg, fmt.Errorf("config: parsing REALM_ID: %w", err)
	}
	cfg.RealmID = realmID

	return cfg, nil
}

func loadYAMLIfPresent(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func requiredEnv(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", fmt.Errorf("config: required environment variable %s is not set", name)
	}
	return v, nil
}

func requiredEnvSeconds(name string) (time.Duration, error) {
	raw, err := requiredEnv(name)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parsing %s: %w", name, err)
	}
	return time.Duration(seconds) * time.Second, nil
}
