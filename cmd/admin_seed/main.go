// Command admin_seed provisions a merchant from the environment, issues it a fresh
// token and mints an admin session JWT for the back office.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"paylink/internal/config"
	"paylink/internal/logging"
	"paylink/internal/models"
	"paylink/internal/repositories"
	"paylink/internal/services/auth"
	"paylink/internal/services/merchant"
	"paylink/internal/services/vault"
	"paylink/internal/validation"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()
	logger := logging.New(cfg.Server.LogLevel, config.IsProduction())

	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" || cfg.JWT.Secret == "" {
		log.Fatal("ADMIN_EMAIL and JWT_SECRET must be set in environment")
	}

	db, err := repositories.InitDB(cfg.DB, logger)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Printf("Failed to close PostgreSQL connection: %v", err)
			}
		}
	}()

	v, err := vault.New(vault.Config{HashCost: cfg.Vault.HashCost, EncryptionKey: cfg.Vault.EncryptionKey})
	if err != nil {
		log.Fatalf("Invalid token vault configuration: %v", err)
	}
	// Pending links keep their price when the seed changes commission settings.
	svc := merchant.NewService(repositories.NewMerchantRepository(db), v, nil, nil, merchant.Config{ExposeTokens: true}, logger, nil)

	ctx := context.Background()
	in := merchantInputFromEnv()

	var merchantID uint
	var token string
	if raw := os.Getenv("MERCHANT_ID"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			log.Fatalf("Invalid MERCHANT_ID: %v", err)
		}
		merchantID = uint(id)
		if _, err := svc.Update(ctx, merchantID, in); err != nil {
			log.Fatalf("Failed to update merchant %d: %v", merchantID, err)
		}
		res, err := svc.RotateToken(ctx, merchantID)
		if err != nil {
			log.Fatalf("Failed to rotate token: %v", err)
		}
		token = res.Token
	} else {
		registered, err := svc.Register(ctx, in)
		if err != nil {
			log.Fatalf("Failed to register merchant: %v", err)
		}
		merchantID = registered.Merchant.ID
		token = registered.Token.Token
	}

	role := config.GetEnv("ADMIN_ROLE", models.RoleAdmin)
	jwt, err := auth.NewAdminTokens(cfg.JWT.Secret, cfg.JWT.TTL).Generate(1, adminEmail, role, nil)
	if err != nil {
		log.Fatalf("Failed to mint admin token: %v", err)
	}

	fmt.Printf("merchant_id=%d\n", merchantID)
	fmt.Printf("merchant_token=%s\n", token)
	fmt.Printf("admin_jwt=%s\n", jwt)
}

// merchantInputFromEnv reads only the variables that are set, so an update leaves the rest alone.
func merchantInputFromEnv() validation.MerchantInput {
	var in validation.MerchantInput
	if v, ok := os.LookupEnv("MERCHANT_NAME"); ok {
		in.Name = &v
	}
	if v, ok := os.LookupEnv("MERCHANT_IBAN"); ok {
		in.IBAN = &v
	}
	if v, ok := os.LookupEnv("MERCHANT_EDRPOU"); ok {
		in.EDRPOU = &v
	}
	if _, ok := os.LookupEnv("MERCHANT_PERCENT_RATE"); ok {
		rate := config.GetFloatEnv("MERCHANT_PERCENT_RATE", 0)
		use := rate > 0
		in.PercentRate, in.UsePercentCommission = &rate, &use
	}
	if _, ok := os.LookupEnv("MERCHANT_FIXED_FEE"); ok {
		fee := config.GetFloatEnv("MERCHANT_FIXED_FEE", 0)
		use := fee > 0
		in.FixedFee, in.UseFixedCommission = &fee, &use
	}
	if _, ok := os.LookupEnv("MERCHANT_DAILY_LIMIT"); ok {
		limit := config.GetIntEnv("MERCHANT_DAILY_LIMIT", 0)
		use := limit > 0
		in.DailyLimit, in.UseDailyLimit = &limit, &use
	}
	return in
}
