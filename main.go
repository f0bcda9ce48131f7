package main

import (
	"log"

	"jobhunter/cmd"

	"github.com/joho/godotenv"
)

func main() {
	// Secrets like the Gemini key file location may come from a local .env.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
