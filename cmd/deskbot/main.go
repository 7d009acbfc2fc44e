// Command deskbot relays messages between Telegram users and an admin group
// and collects application files for review.
package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"

	corecmd "github.com/m3rciful/deskbot/core/cmd"
	"github.com/m3rciful/deskbot/internal/app"
	"github.com/m3rciful/deskbot/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(c corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.New(c.(*config.Config))
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
