package main

import (
	"context"
	"errors"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-compat/internal/auth"
)

func tokenCmd() *Command {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	var (
		subject string
		role    string
		secret  string
		ttl     int
	)
	fs.StringVar(&subject, "subject", "compatctl", "token subject, logged with catalogue reloads")
	fs.StringVar(&role, "role", string(auth.RoleViewer), "role: viewer, operator or admin")
	fs.StringVar(&secret, "secret", os.Getenv("COMPAT_JWT_SECRET"), "signing secret (default $COMPAT_JWT_SECRET)")
	fs.IntVar(&ttl, "ttl", 60, "lifetime in minutes")

	return &Command{
		Flags: fs,
		Usage: "token --role <role> [flags]",
		Short: "Mint an access token for a server with require_auth",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			if secret == "" {
				return errors.New("--secret or COMPAT_JWT_SECRET is required")
			}
			tok, err := auth.GenerateAccessToken(subject, auth.Role(role), secret, ttl)
			if err != nil {
				return err
			}
			o.Println(tok)

			perms := auth.PermissionsForRole(auth.Role(role))
			names := make([]string, len(perms))
			for i, p := range perms {
				names[i] = string(p)
			}
			o.ErrPrintln("role", role, "grants", strings.Join(names, ", "))
			return nil
		},
	}
}
