package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/m3rciful/gatekeeper/core/cmd"
	"github.com/m3rciful/gatekeeper/gate/app"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: app.Bootstrap,
	})
	if err != nil {
		log.Fatalf("gatekeeper: %v", err)
	}
}
