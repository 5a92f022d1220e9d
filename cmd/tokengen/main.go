// Command tokengen mints bearer tokens for exercising the rollcall API
// locally. Tokens are signed with the development key unless -key is set,
// so any deployment with its own JWT_SIGNING_KEY rejects them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	jwttoken "rollcall/internal/jwt_token"
	"rollcall/internal/platform/config"
	"rollcall/pkg/requestcontext"
)

const usage = `tokengen mints bearer tokens for the rollcall API.

Usage:
  tokengen <issuer|claimant> [flags]

Examples:
  tokengen issuer
  tokengen claimant -sub 550e8400-e29b-41d4-a716-446655440000 -ttl 10m
  tokengen issuer -key "$JWT_SIGNING_KEY" -json
`

var errUsage = errors.New("usage")

type minted struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	Subject   string `json:"sub"`
	ExpiresAt string `json:"expires_at"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, time.Now); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "tokengen:", err)
		}
		fmt.Fprint(os.Stderr, "\n"+usage)
		os.Exit(2)
	}
}

func run(args []string, out io.Writer, now func() time.Time) error {
	if len(args) == 0 {
		return errUsage
	}

	var role requestcontext.Role
	switch args[0] {
	case "issuer":
		role = requestcontext.RoleIssuer
	case "claimant":
		role = requestcontext.RoleClaimant
	case "help", "-h", "--help":
		_, err := fmt.Fprint(out, usage)
		return err
	default:
		return fmt.Errorf("unknown role %q", args[0])
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	subject := fs.String("sub", "", "actor UUID; random when empty")
	key := fs.String("key", config.Defaults().Auth.JWTSigningKey, "HS256 signing key")
	issuer := fs.String("iss", "", "issuer claim, matching JWT_ISSUER")
	audience := fs.String("aud", "", "audience claim, matching JWT_AUDIENCE")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", *ttl)
	}

	actorID := uuid.New()
	if *subject != "" {
		parsed, err := uuid.Parse(*subject)
		if err != nil || parsed == uuid.Nil {
			return fmt.Errorf("invalid subject %q", *subject)
		}
		actorID = parsed
	}

	issuedAt := now().UTC()
	ctx := requestcontext.WithTime(context.Background(), issuedAt)
	token, err := jwttoken.NewJWTService(*key, *issuer, *audience).GenerateToken(ctx, actorID, role, *ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	res := minted{
		Token:     token,
		Role:      string(role),
		Subject:   actorID.String(),
		ExpiresAt: issuedAt.Add(*ttl).Format(time.RFC3339),
	}
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err = fmt.Fprintf(out, "%s token for %s, expires %s\n\n%s\n", res.Role, res.Subject, res.ExpiresAt, res.Token)
	return err
}
