package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/miladrsm/colorcart/internal/server"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Fatal().Msg("Error loading .env file")
	}

	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
