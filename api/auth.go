package api

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/BaSui01/hyperinfer/internal/model"
)

// AdminAuthConfig configures the admin HTTP surface's bearer-token check.
type AdminAuthConfig struct {
	Secret string `yaml:"secret" env:"ADMIN_JWT_SECRET"`
	Issuer string `yaml:"issuer" env:"ADMIN_JWT_ISSUER"`
}

// AdminAuth validates HS256 JWTs from the Authorization: Bearer header
//. It is deliberately simpler than a tenant-facing
// auth middleware — the admin surface has no tenant_id/roles claims to
// thread through context, only "is this caller allowed to touch tenant
// data at all". skipPaths are exempt (health checks, config sync which
// data-plane instances poll unauthenticated within a trusted network).
func AdminAuth(cfg AdminAuthConfig, skipPaths []string, logger *zap.Logger) func(http.Handler) http.Handler {
	skipSet := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skipSet[p] = struct{}{}
	}
	secret := []byte(cfg.Secret)

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := skipSet[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				WriteErrorMessage(w, http.StatusUnauthorized, model.ErrConfigError, "missing or malformed Authorization header", logger)
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			token, err := jwt.Parse(tokenStr, keyFunc, parserOpts...)
			if err != nil || !token.Valid {
				logger.Debug("admin JWT validation failed", zap.Error(err))
				WriteErrorMessage(w, http.StatusUnauthorized, model.ErrConfigError, "invalid or expired token", logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
