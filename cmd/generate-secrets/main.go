package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/smarttransit/seat-reservation/pkg/jwt"
	"github.com/spf13/pflag"
)

// Prints a fresh JWT_SECRET, or with --token a development access token signed
// with the JWT_SECRET already configured.
func main() {
	var (
		issueToken bool
		phone      string
		roles      []string
		ttl        time.Duration
	)
	flagSet := pflag.NewFlagSet("generate-secrets", pflag.ExitOnError)
	flagSet.BoolVarP(&issueToken, "token", "t", false, "issue a development access token instead of a secret")
	flagSet.StringVar(&phone, "phone", "0771234567", "phone number claim of the token")
	flagSet.StringSliceVar(&roles, "roles", []string{"passenger"}, "roles of the token, e.g. passenger,admin")
	flagSet.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = flagSet.Parse(os.Args[1:])

	if !issueToken {
		secret, err := generateSecret(64)
		if err != nil {
			log.Fatalf("Failed to generate secret: %v", err)
		}
		fmt.Println("Add this to your .env file:")
		fmt.Println()
		fmt.Printf("JWT_SECRET=%s\n", secret)
		return
	}

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	token, err := jwt.NewVerifier(secret).Sign(uuid.New(), phone, roles, ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}

func generateSecret(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
