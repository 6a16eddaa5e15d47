package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keepwaifu/backend/internal/models"
)

type contextKey string

const IdentityKey contextKey = "identity"

// Identity is what the mini-app host vouches for in a signed token.
type Identity struct {
	UserID    string
	FirstName string
	Username  string
	PhotoURL  string
	Role      string
}

// Hints turns the token claims into resolver hints.
func (id Identity) Hints() models.ProfileHints {
	return models.ProfileHints{
		DisplayName: models.StrPtr(id.FirstName),
		Username:    models.StrPtr(id.Username),
		AvatarURL:   models.StrPtr(id.PhotoURL),
	}
}

// JWTIdentity validates an optional Bearer token. Requests without one pass
// through anonymously; a malformed or invalid token is rejected. An empty
// secret disables token handling entirely.
func JWTIdentity(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || jwtSecret == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid authorization header format"))
				return
			}

			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token"))
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid token claims"))
				return
			}

			id := Identity{
				UserID:    claimString(claims, "user_id"),
				FirstName: claimString(claims, "first_name"),
				Username:  claimString(claims, "username"),
				PhotoURL:  claimString(claims, "photo_url"),
				Role:      claimString(claims, "role"),
			}
			ctx := context.WithValue(r.Context(), IdentityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose token does not carry role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := GetIdentity(r.Context())
			if !ok {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authorization required"))
				return
			}
			if role == "" || id.Role != role {
				writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentity extracts the token identity from context.
func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(Identity)
	return id, ok
}

// GetUserID extracts the token user id from context.
func GetUserID(ctx context.Context) string {
	id, _ := GetIdentity(ctx)
	return id.UserID
}

// Telegram ids arrive as JSON numbers.
func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
