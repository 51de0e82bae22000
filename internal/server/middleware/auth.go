package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veritrail/veritrail/internal/directory"
)

type jwtClaims struct {
	jwt.RegisteredClaims
	OrgID  string   `json:"tid"`
	UserID string   `json:"uid"`
	Roles  []string `json:"roles"`
}

// Auth authenticates every request with an HS256 token: interactive clients
// send it as a Bearer token, service accounts as X-API-Key (a long-lived
// token issued out of band). The subject is then resolved against the
// tenant directory, which rejects unknown and deactivated accounts, and the
// resulting principal is stored in the request context. The token's tenant
// claim must match the directory record so tokens issued before an org move
// stop working immediately.
func Auth(jwtSecret string, dir *directory.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := extractBearer(r)
			if tok == "" {
				tok = r.Header.Get("X-API-Key")
			}
			if tok == "" {
				unauthorized(w)
				return
			}

			ctx, ok := authenticate(r.Context(), tok, jwtSecret, dir)
			if !ok {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, `{"title":"Unauthorized","status":401,"detail":"missing or invalid credentials"}`, http.StatusUnauthorized)
}

func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return auth[7:]
	}
	return ""
}

func authenticate(ctx context.Context, tokenStr, secret string, dir *directory.Service) (context.Context, bool) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return ctx, false
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return ctx, false
	}
	orgID, err := uuid.Parse(claims.OrgID)
	if err != nil {
		return ctx, false
	}

	p, err := dir.ResolvePrincipal(ctx, userID)
	if err != nil {
		log.Debug().Err(err).Str("user_id", userID.String()).Msg("auth: principal resolution failed")
		return ctx, false
	}
	if p.OrgID != orgID {
		log.Warn().Str("user_id", userID.String()).Msg("auth: token tenant claim does not match directory")
		return ctx, false
	}

	return WithPrincipal(ctx, p), true
}
