package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"poker-leaderboard-backend/internal/config"
	"poker-leaderboard-backend/internal/logger"
	"poker-leaderboard-backend/internal/services"
)

// Prints an admin token for the clear-all and rebuild endpoints.
func main() {
	configPath := flag.String("config", "", "optional config file")
	subject := flag.String("subject", "admin", "token subject, shown in the server log")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}

	if !cfg.AdminEnabled() {
		logger.Error("ADMIN_JWT_SECRET must be set")
		os.Exit(1)
	}

	token, err := services.NewJWTService(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL).GenerateAdminToken(*subject)
	if err != nil {
		logger.Error("Failed to generate token: %v", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
