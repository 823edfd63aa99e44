package server

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tabeth/memq/models"
	"github.com/tabeth/memq/store"
)

const accountIDClaim = "account_id"

// AuthMiddleware validates the bearer token and binds its account_id claim
// to the caller identity. CreateToken is exempt; it checks the admin key.
func (app *App) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := r.Header.Get("X-Amz-Target")
		if strings.HasSuffix(target, ".CreateToken") {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			app.sendErrorResponse(w, "MissingAuthenticationToken", "Request is missing Authentication Token", http.StatusUnauthorized)
			return
		}
		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || tokenString == "" {
			app.sendErrorResponse(w, "InvalidAuthenticationToken", "Invalid Authentication Token format", http.StatusUnauthorized)
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return app.JWTSecret, nil
		})
		if err != nil || !token.Valid {
			app.sendErrorResponse(w, "InvalidAuthenticationToken", "Invalid Authentication Token", http.StatusUnauthorized)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			app.sendErrorResponse(w, "InvalidAuthenticationToken", "Invalid Token Claims", http.StatusUnauthorized)
			return
		}
		accountID, ok := claims[accountIDClaim].(string)
		if !ok || accountID == "" {
			app.sendErrorResponse(w, "InvalidAuthenticationToken", "Token missing account_id", http.StatusUnauthorized)
			return
		}

		id, _ := store.IdentityFromContext(r.Context())
		id.AccountID = accountID
		next.ServeHTTP(w, r.WithContext(store.WithIdentity(r.Context(), id)))
	})
}

// CreateTokenHandler mints a bearer token for an account. It requires the
// admin API key in the X-Admin-Key header.
func (app *App) CreateTokenHandler(w http.ResponseWriter, r *http.Request) {
	if app.AdminAPIKey == "" || len(app.JWTSecret) == 0 {
		app.sendErrorResponse(w, "UnsupportedOperation", "Token issuing is not configured", http.StatusBadRequest)
		return
	}
	if r.Header.Get("X-Admin-Key") != app.AdminAPIKey {
		app.sendErrorResponse(w, "AccessDenied", "Invalid or missing Admin API Key", http.StatusForbidden)
		return
	}

	var req models.CreateTokenRequest
	if !app.decode(w, r, &req) {
		return
	}
	if req.AccountId == "" {
		app.sendErrorResponse(w, "MissingParameter", "AccountId is required", http.StatusBadRequest)
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		accountIDClaim: req.AccountId,
	})
	tokenString, err := token.SignedString(app.JWTSecret)
	if err != nil {
		app.sendErrorResponse(w, "InternalFailure", "Failed to sign token", http.StatusInternalServerError)
		return
	}
	app.writeJSON(w, models.CreateTokenResponse{Token: tokenString})
}
