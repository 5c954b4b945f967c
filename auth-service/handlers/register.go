package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/chepyr/go-kanban/auth-service/db"
	"github.com/chepyr/go-kanban/shared"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (handler *Handler) Register(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		log.Printf("Invalid method for register: %s", request.Method)
		shared.SendError(writer, "Use POST method", http.StatusMethodNotAllowed)
		return
	}

	if !handler.allow(request) {
		log.Printf("Rate limit exceeded for IP: %s", clientIP(request))
		shared.SendError(writer, "Too many register attempts. Please try again later.", http.StatusTooManyRequests)
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

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		shared.SendError(writer, "Cannot hash password", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        input.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := context.WithTimeout(request.Context(), 5*time.Second)
	defer cancel()
	if err := handler.UserRepo.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrEmailTaken) {
			shared.SendError(writer, "Email already registered", http.StatusConflict)
			return
		}
		log.Printf("Error saving user %s: %v", user.Email, err)
		shared.SendError(writer, "Cannot save user", http.StatusInternalServerError)
		return
	}

	log.Printf("User registered: %s", user.Email)
	shared.SendJSON(writer, http.StatusCreated, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
}

func validateCredentials(input credentials, writer http.ResponseWriter) bool {
	if !isValidEmail(input.Email) {
		log.Printf("Invalid email format")
		shared.SendError(writer, "Invalid email", http.StatusBadRequest)
		return false
	}
	if len(input.Password) < minPasswordLength {
		log.Printf("Password too short")
		shared.SendError(writer, "Password must be at least 6 characters long", http.StatusBadRequest)
		return false
	}
	return true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
