package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// AuthMiddleware verifies an HS256 session token taken from the Authorization header,
// or from the token query parameter when the header is absent, and stores the
// principal's email in the request context.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == HealthPath || r.URL.Path == MetricsPath {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := bearerToken(r)
			if tokenString == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": ErrAuthRequired})
				return
			}

			claims, err := validateJWTToken(tokenString, secret)
			if err != nil {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg(LogJWTValidationFailed)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": ErrAuthorizationFailed})
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get(AuthorizationHeader); header != "" {
		if token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix)); token != "" {
			return token
		}
	}
	return r.URL.Query().Get(TokenQueryParam)
}

// validateJWTToken checks the signature and the registered time claims
func validateJWTToken(tokenString string, secret []byte) (*JWTClaims, error) {
	claims := &JWTClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf(ErrUnexpectedSigning, t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if claims.Email == "" {
		return nil, errors.New(ErrMissingEmailClaim)
	}
	return claims, nil
}

// GetPrincipalFromContext returns the authenticated email
func GetPrincipalFromContext(ctx context.Context) (string, error) {
	email, ok := ctx.Value(PrincipalKey).(string)
	if !ok || email == "" {
		return "", errors.New(ErrPrincipalNotFound)
	}
	return email, nil
}
