package main

import (
	"log"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; viper reads the process environment afterwards.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	Execute()
}
