package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"gift-backend/internal/config"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	newSecret := flag.Bool("new", false, "generate a fresh TOTP secret instead of a code")
	flag.Parse()

	if *newSecret {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      "Gift Admin",
			AccountName: "admin",
			Period:      30,
			Digits:      otp.DigitsSix,
			Algorithm:   otp.AlgorithmSHA1,
		})
		if err != nil {
			log.Fatalf("Error generating TOTP secret: %v", err)
		}
		fmt.Printf("Secret: %s\n", key.Secret())
		fmt.Printf("URL:    %s\n", key.URL())
		fmt.Println("Set it as admin.totpSecret or ADMIN_TOTP_SECRET.")
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Admin.TOTPSecret == "" {
		log.Fatal("admin.totpSecret (ADMIN_TOTP_SECRET) is not set, run with -new to create one")
	}

	code, err := totp.GenerateCode(cfg.Admin.TOTPSecret, time.Now())
	if err != nil {
		log.Fatalf("Error generating TOTP code: %v", err)
	}
	fmt.Printf("Current TOTP Code: %s\n", code)
	fmt.Printf("Valid for: ~30 seconds\n")
}
