package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/chepyr/go-kanban/auth-service/db"
	"github.com/chepyr/go-kanban/shared"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

func (handler *Handler) Login(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		log.Printf("Invalid method for login: %s", request.Method)
		shared.SendError(writer, "Use POST method for login", http.StatusMethodNotAllowed)
		return
	}

	if !handler.allow(request) {
		log.Printf("Rate limit exceeded for IP: %s", clientIP(request))
		shared.SendError(writer, "Too many login attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var input credentials
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		log.Printf("Error decoding JSON: %v", err)
		shared.SendError(writer, "Bad JSON", http.StatusBadRequest)
		return
	}
	input.Email = normalizeEmail(input.Email)
	if !validateCredentials(input, writer) {
		return
	}

	ctx, cancel := context.WithTimeout(request.Context(), 5*time.Second)
	defer cancel()

	user, err := handler.UserRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			log.Printf("Error retrieving user by email %s: %v", input.Email, err)
		}
		shared.SendError(writer, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		log.Printf("Invalid password for email: %s", input.Email)
		shared.SendError(writer, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	tokenString, expires, err := generateJWTToken(user.ID.String())
	if err != nil {
		log.Printf("Error generating token: %v", err)
		shared.SendError(writer, "Cannot create token", http.StatusInternalServerError)
		return
	}

	shared.SendJSON(writer, http.StatusOK, map[string]any{
		"user_email": user.Email,
		"user_id":    user.ID,
		"token":      tokenString,
		"expires_at": expires,
	})
	log.Printf("User logged in: %s", input.Email)
}

func jwtSecret() ([]byte, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}
	return []byte(secret), nil
}

func generateJWTToken(sub string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": expires.Unix(),
		"iat": now.Unix(),
	})

	secret, err := jwtSecret()
	if err != nil {
		return "", time.Time{}, err
	}
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("error signing token: %w", err)
	}
	return tokenString, expires.UTC().Truncate(time.Second), nil
}
