package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/chepyr/go-kanban/auth-service/db"
	"github.com/chepyr/go-kanban/shared"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Me returns the user the bearer token was issued to.
func (handler *Handler) Me(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		shared.SendError(writer, "Use GET method", http.StatusMethodNotAllowed)
		return
	}
	userID, err := subjectFrom(request)
	if err != nil {
		shared.SendError(writer, "Invalid token", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(request.Context(), 5*time.Second)
	defer cancel()

	user, err := handler.UserRepo.GetByID(ctx, userID)
	if errors.Is(err, db.ErrUserNotFound) {
		shared.SendError(writer, "User not found", http.StatusUnauthorized)
		return
	}
	if err != nil {
		log.Printf("Error retrieving user %s: %v", userID, err)
		shared.SendError(writer, "Cannot load user", http.StatusInternalServerError)
		return
	}
	shared.SendJSON(writer, http.StatusOK, user)
}

func subjectFrom(request *http.Request) (uuid.UUID, error) {
	header := request.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return uuid.Nil, errors.New("missing bearer token")
	}
	secret, err := jwtSecret()
	if err != nil {
		return uuid.Nil, err
	}
	token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return uuid.Nil, err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(sub)
}
