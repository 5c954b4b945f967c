package shared

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinBoardTitle  = 3
	MaxBoardTitle  = 100
	MaxListTitle   = 100
	MaxCardTitle   = 200
	MaxDescription = 1000
)

// ErrValidation marks input rejected before any persistence call.
var ErrValidation = errors.New("validation failed")

// ValidateBoardTitle trims title and checks its length.
func ValidateBoardTitle(title string) (string, error) {
	return checkTitle("board title", title, MinBoardTitle, MaxBoardTitle)
}

func ValidateListTitle(title string) (string, error) {
	return checkTitle("list title", title, 1, MaxListTitle)
}

func ValidateCardTitle(title string) (string, error) {
	return checkTitle("card title", title, 1, MaxCardTitle)
}

// ValidateDescription accepts the empty string, which clears a description.
func ValidateDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if utf8.RuneCountInString(desc) > MaxDescription {
		return "", fmt.Errorf("%w: description must be <= %d characters", ErrValidation, MaxDescription)
	}
	return desc, nil
}

func checkTitle(what, title string, lo, hi int) (string, error) {
	title = strings.TrimSpace(title)
	n := utf8.RuneCountInString(title)
	if n == 0 {
		return "", fmt.Errorf("%w: %s is required", ErrValidation, what)
	}
	if n < lo {
		return "", fmt.Errorf("%w: %s must be at least %d characters", ErrValidation, what, lo)
	}
	if n > hi {
		return "", fmt.Errorf("%w: %s must be <= %d characters", ErrValidation, what, hi)
	}
	return title, nil
}
