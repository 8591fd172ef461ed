// Command gentoken mints a signed access token for local development, since
// tokens are normally issued by the clinic's identity service.
//
//	JWT_SECRET=... go run ./cmd/gentoken -rol supervisor -nombre "Dra. Paz"
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"clinicaja/internal/config"
	"clinicaja/internal/middleware"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	userID := flag.String("user", "", "user id (UUID); random when empty")
	username := flag.String("username", "cajero.demo", "username claim")
	nombre := flag.String("nombre", "", "display name claim")
	rol := flag.String("rol", middleware.RolCajero, "cajero | supervisor | administrador")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	id := uuid.New()
	if *userID != "" {
		if id, err = uuid.Parse(*userID); err != nil {
			log.Fatal().Err(err).Msg("invalid -user")
		}
	}

	ttl := time.Duration(cfg.JWTExpirationHours) * time.Hour
	token, err := middleware.FirmarToken(cfg.JWTSecret, id, *username, *nombre, *rol, ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign token")
	}
	log.Info().Str("user_id", id.String()).Str("rol", *rol).Dur("ttl", ttl).Msg("token issued")
	fmt.Println(token)
}
