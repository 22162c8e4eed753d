// Command seedadmin creates the initial administrator account. It is meant
// to be run once against a fresh database, before the server first starts.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"syscall"

	"github.com/funews/funews/internal/common"
	"github.com/funews/funews/internal/server/config"
	"github.com/funews/funews/internal/server/models"
	"github.com/funews/funews/internal/server/repositories/repomanager"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Printf("error loading .env: %v", err)
		}
	}

	cfg := config.LoadConfig()
	if err := run(context.Background(), cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	repo := rm.Accounts(db)
	if _, err := repo.GetByEmail(ctx, cfg.AdminEmail); err == nil {
		fmt.Printf("admin account %s already exists, nothing to do\n", cfg.AdminEmail)
		return nil
	} else if !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("error checking admin account: %w", err)
	}

	password, err := promptPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	account, err := repo.Create(ctx, &models.Account{
		Name:         "Administrator",
		Email:        cfg.AdminEmail,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		IsActive:     true,
	})
	if err != nil {
		return fmt.Errorf("error creating admin account: %w", err)
	}

	fmt.Printf("admin account %s created (id %d)\n", account.Email, account.ID)
	return nil
}

func promptPassword() ([]byte, error) {
	fmt.Print("admin password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("error reading password: %w", err)
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	fmt.Print("repeat password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("error reading password: %w", err)
	}
	defer common.WipeByteArray(confirm)
	if string(password) != string(confirm) {
		common.WipeByteArray(password)
		return nil, errors.New("passwords do not match")
	}
	return password, nil
}
