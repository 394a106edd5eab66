// Package config loads the legacy wallet-server's own small runtime
// configuration, kept separate from internal/config because this
// server is an optional, independently-deployable surface (spec.md §6
// routes re-exposed over gorilla/mux instead of chi).
package config

import (
	"os"

	"github.com/joho/godotenv"
)

type ServerConfig struct {
	Port string
}

var AppConfig ServerConfig

// Load reads walletserver/.env (if present) and WALLET_PORT, defaulting
// to 8081 when unset.
func Load() error {
	_ = godotenv.Load("walletserver/.env")
	port := os.Getenv("WALLET_PORT")
	if port == "" {
		port = "8081"
	}
	AppConfig = ServerConfig{Port: port}
	return nil
}
