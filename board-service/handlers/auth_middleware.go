package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/chepyr/go-kanban/shared"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

/*
Verify the HS256 token issued by auth-service.
The sub claim carries the user id, which is put into the request context.
*/
func (h *Handler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.SendError(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return h.JWTSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			shared.SendError(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			shared.SendError(w, "Invalid token claims", http.StatusUnauthorized)
			return
		}
		if _, err := uuid.Parse(sub); err != nil {
			shared.SendError(w, "Invalid token claims", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), shared.UserIDKey, sub)
		next(w, r.WithContext(ctx))
	}
}
