// Package authn authenticates service clients by bearer token. Tokens are
// stored hashed; each client carries the scopes it may call.
package authn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"signeddoc/pkg/httpx"
)

var ErrUnauthorized = errors.New("unauthorized")

const schema = `
CREATE TABLE IF NOT EXISTS service_tokens (
	token_hash text PRIMARY KEY,
	name       text NOT NULL,
	scopes     text[] NOT NULL DEFAULT '{}',
	revoked_at timestamptz
);
`

// EnsureSchema creates the token table if it does not exist.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}

// Client is an authenticated service client.
type Client struct {
	Name   string
	Scopes []string
}

func (c *Client) HasScope(required string) bool {
	for _, s := range c.Scopes {
		if s == required {
			return true
		}
	}
	return false
}

// Authenticate resolves a bearer Authorization header to a client.
func Authenticate(ctx context.Context, db *pgxpool.Pool, authorization string) (*Client, error) {
	token, ok := parseBearerToken(authorization)
	if !ok {
		return nil, ErrUnauthorized
	}
	var out Client
	err := db.QueryRow(ctx, `
SELECT name, scopes
FROM service_tokens
WHERE token_hash=$1
  AND revoked_at IS NULL
`, HashToken(token)).Scan(&out.Name, &out.Scopes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return &out, nil
}

// Issue stores a token under its hash with the given scopes.
func Issue(ctx context.Context, db *pgxpool.Pool, token, name string, scopes []string) error {
	_, err := db.Exec(ctx, `
INSERT INTO service_tokens(token_hash, name, scopes) VALUES($1, $2, $3)
ON CONFLICT (token_hash) DO UPDATE SET name=$2, scopes=$3, revoked_at=NULL`,
		HashToken(token), name, scopes)
	return err
}

// Middleware rejects requests lacking a token with the required scope.
func Middleware(db *pgxpool.Pool, requiredScope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, err := Authenticate(r.Context(), db, r.Header.Get("Authorization"))
			if err != nil {
				if errors.Is(err, ErrUnauthorized) {
					httpx.WriteError(w, 401, "UNAUTHORIZED", "missing or unknown bearer token")
				} else {
					httpx.WriteError(w, 503, "STORE_UNAVAILABLE", err.Error())
				}
				return
			}
			if !client.HasScope(requiredScope) {
				httpx.WriteError(w, 403, "FORBIDDEN", "token lacks scope "+requiredScope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseBearerToken(authorization string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
	return token, token != ""
}

// HashToken returns the hex sha256 of a token, the stored form.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
