// Command adduser creates a login user for the billing office. The app has
// no self-serve signup; operators run this once per credential.
//
//	adduser -username office -password s3cret
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"prekbill/internal/auth"
	"prekbill/internal/config"
	"prekbill/internal/storage"
)

func main() {
	_ = godotenv.Load()

	username := flag.String("username", "", "login username")
	password := flag.String("password", "", "login password")
	flag.Parse()

	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("Failed to open store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	hash, err := auth.HashPassword(*password, cfg.BcryptCost)
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		os.Exit(1)
	}

	id, err := store.CreateUser(context.Background(), *username, hash)
	if err != nil {
		slog.Error("Failed to create user", "error", err, "username", *username)
		os.Exit(1)
	}
	slog.Info("User created", "id", id, "username", *username)
}
