package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"gift-backend/internal/config"
	"gift-backend/internal/handlers"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Admin.JWTSecret == "" {
		log.Fatal("admin.jwtSecret (ADMIN_JWT_SECRET) is not set")
	}

	now := time.Now()
	tokenString, err := handlers.SignAdminJWTToken([]byte(cfg.Admin.JWTSecret), cfg.Admin.Username, *ttl, now)
	if err != nil {
		log.Fatalf("Error generating token: %v", err)
	}

	fmt.Println("============================================================")
	fmt.Println("Admin JWT Token")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Printf("  Username: %s\n", cfg.Admin.Username)
	fmt.Printf("  Expires:  %s\n", now.Add(*ttl).Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  curl -H 'Authorization: Bearer %s' http://localhost:%d/api/admin/gifts/<hash>/events\n", tokenString, cfg.Server.Port)
}
