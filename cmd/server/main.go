package main

import (
	"context"
	"log"
	"os"

	"github.com/funews/funews/internal/server"
	"github.com/funews/funews/internal/server/config"
	"github.com/joho/godotenv"
)

func main() {
	// A local .env is a development convenience; absence is not an error.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Printf("error loading .env: %v", err)
		}
	}

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
