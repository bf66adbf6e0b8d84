package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/ramesius/wez-sonos/internal/auth"
	"github.com/ramesius/wez-sonos/internal/config"
)

// mktoken mints an access/refresh token pair for an API client. There is no
// in-band pairing flow; tokens are issued out of band by whoever runs the
// daemon and holds JWT_SECRET.
func main() {
	clientName := flag.String("client", "", "client name to embed in the token")
	flag.Parse()

	if *clientName == "" {
		log.Fatal("usage: mktoken -client <name>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	pair, err := auth.GenerateTokenPair(cfg, auth.TokenPayload{
		Sub:        uuid.NewString(),
		ClientName: *clientName,
	})
	if err != nil {
		log.Fatalf("token error: %v", err)
	}

	fmt.Printf("access_token:  %s\n", pair.AccessToken)
	fmt.Printf("refresh_token: %s\n", pair.RefreshToken)
	fmt.Printf("expires_in:    %ds\n", pair.ExpiresInSec)
}
