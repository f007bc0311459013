// Command token prints a signed access token for a user, for local testing
// and service-to-service calls.
package main

import (
	"flag"
	"fmt"
	"os"

	"curriculab/internal/auth"
	"curriculab/internal/config"
)

func main() {
	cfg := config.Load()

	user := flag.String("user", "", "user id (token subject)")
	email := flag.String("email", "", "optional email claim")
	role := flag.String("role", "student", "role claim")
	ttl := flag.Duration("ttl", cfg.AccessTTL, "token lifetime")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "usage: token -user <id> [-email e] [-role r] [-ttl 24h]")
		os.Exit(2)
	}

	tok, err := auth.Issue(*user, *email, *role, cfg.JWTIssuer, cfg.JWTSigningKey, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok.AccessToken)
}
