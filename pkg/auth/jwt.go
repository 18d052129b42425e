package auth

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// JWT configuration constants
const (
	// Default values - actual values are loaded from configuration
	defaultJWTSecret = "fallback_secret_change_in_production"
	tokenIssuer      = "retrobasic"
	tokenCookie      = "basic_token"
)

// getJWTSecret retrieves the JWT secret from environment variable or configuration
func getJWTSecret() string {
	if envSecret := os.Getenv("RETROBASIC_JWT_SECRET"); envSecret != "" {
		return envSecret
	}
	secret := configuration.GetString("JWT", "secret_key", "")
	if secret == "" {
		logger.Warn(logger.AreaTerminal, "[AUTH] Using fallback JWT secret - set RETROBASIC_JWT_SECRET or [JWT] secret_key")
		return defaultJWTSecret
	}
	return secret
}

// getTokenExpiration retrieves the token expiration duration from configuration
func getTokenExpiration() time.Duration {
	hours := configuration.GetInt("JWT", "token_expiration_hours", 24)
	return time.Duration(hours) * time.Hour
}

// UserClaims are the claims of a terminal bearer token.
type UserClaims struct {
	SessionID string `json:"sid"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateUserToken signs a token allowing username to run programs on the
// terminal endpoint.
func GenerateUserToken(sessionID, username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username must not be empty")
	}
	now := time.Now()
	claims := UserClaims{
		SessionID: sessionID,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(getTokenExpiration())),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   username,
			ID:        sessionID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(getJWTSecret()))
	if err != nil {
		return "", fmt.Errorf("token could not be signed: %v", err)
	}
	logger.Info(logger.AreaTerminal, "[AUTH] Token generated for %s (session %s)", username, sessionID)
	return signedToken, nil
}

// ValidateUserToken checks signature, algorithm, issuer and expiry of a
// bearer token.
func ValidateUserToken(tokenString string) (*UserClaims, error) {
	secretKey := getJWTSecret()
	token, err := jwt.ParseWithClaims(
		tokenString,
		&UserClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing algorithm: %v", token.Header["alg"])
			}
			return []byte(secretKey), nil
		},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %v", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(*UserClaims)
	if !ok {
		return nil, fmt.Errorf("could not extract token claims")
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("token has no username")
	}
	return claims, nil
}

// ExtractTokenFromRequest extracts the JWT token from the HTTP request.
// Browsers cannot set headers on a websocket upgrade, so a cookie or the
// token query parameter are accepted as well.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" { // Format: "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
			return parts[1], nil
		}
		return "", fmt.Errorf("invalid authorization header format")
	}
	if cookie, err := r.Cookie(tokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("no token found in request")
}

// RequireToken is a middleware rejecting requests without a valid bearer
// token. The claims are added to the request context.
func RequireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := ExtractTokenFromRequest(r)
		if err != nil {
			logger.Warn(logger.AreaTerminal, "[AUTH] No token in request from %s: %v", r.RemoteAddr, err)
			http.Error(w, "Unauthorized: token missing", http.StatusUnauthorized)
			return
		}
		claims, err := ValidateUserToken(tokenString)
		if err != nil {
			logger.Warn(logger.AreaTerminal, "[AUTH] Invalid token from %s: %v", r.RemoteAddr, err)
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(AddClaimsToContext(r.Context(), claims)))
	}
}
