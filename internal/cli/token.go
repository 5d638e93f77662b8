package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/cobra"
)

type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// Issue は /session/identity 用のHS256トークンを作る。
func (i *tokenIssuer) Issue(userID string, correlation string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.ttl)

	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	if correlation != "" {
		claims["sid"] = correlation
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// NewTokenCommand は開発用の識別トークンを発行する（JWT_SECRET で署名）。
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		sub         string
		correlation string
		ttl         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development identity token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is required")
			}
			issuer := &tokenIssuer{secret: []byte(secret), ttl: ttl}
			signed, exp, err := issuer.Issue(sub, correlation, time.Now())
			if err != nil {
				return err
			}

			if opts.Format == "json" {
				return writeJSON(cmd, map[string]any{"access_token": signed, "expires_at": exp})
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&sub, "sub", "", "user id (required)")
	_ = cmd.MarkFlagRequired("sub")
	cmd.Flags().StringVar(&correlation, "sid", "", "session correlation token")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "token lifetime")
	return cmd
}
