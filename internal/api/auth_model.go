package api

import (
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	PrincipalKey contextKey = "principal"
)

// HTTP header constants
const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
	TokenQueryParam     = "token"
)

// HTTP path constants
const (
	HealthPath  = "/health"
	MetricsPath = "/metrics"
)

// Error message constants
const (
	ErrAuthRequired        = "Authorization required"
	ErrAuthorizationFailed = "Authorization failed. Ensure you are logged in."
	ErrPrincipalNotFound   = "principal not found in context"
	ErrMissingEmailClaim   = "token has no email claim"
	ErrUnexpectedSigning   = "unexpected signing method: %v"
)

// Request validation messages
const (
	MsgMissingFields    = "year_of_birth, gender and symptoms must be provided."
	MsgInvalidYear      = "year_of_birth must be a valid year."
	MsgInvalidGender    = "Gender must be male or female."
	MsgSymptomsNotArray = "Symptoms must be an array of numbers."
	MsgInvalidSymptoms  = "Invalid symptoms detected."
	MsgUnknownSymptoms  = "Provided symptoms are not valid."
)

// Log message constants
const (
	LogJWTValidationFailed = "JWT token validation failed"
	LogResolveFailed       = "Diagnosis resolution failed"
)

// JWTClaims are the claims carried by session tokens. Email identifies the principal
// recorded as the initiator of a resolution.
type JWTClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}
