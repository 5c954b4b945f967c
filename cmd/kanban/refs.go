package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chepyr/go-kanban/internal/drag"
	"github.com/chepyr/go-kanban/internal/view"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
)

const minPrefix = 4

var (
	errNoMatch   = errors.New("nothing matches")
	errAmbiguous = errors.New("matches more than one item")
)

// resolve finds the single item named by ref: a full id, an id prefix of at
// least minPrefix characters, or a case-insensitive title.
func resolve[T any](items []T, ref string, id func(T) uuid.UUID, title func(T) string) (T, error) {
	var zero T
	ref = strings.TrimSpace(ref)
	if parsed, err := uuid.Parse(ref); err == nil {
		for _, it := range items {
			if id(it) == parsed {
				return it, nil
			}
		}
		return zero, fmt.Errorf("%q: %w", ref, errNoMatch)
	}

	pick := func(match func(T) bool) (T, int) {
		var found T
		n := 0
		for _, it := range items {
			if match(it) {
				found = it
				n++
			}
		}
		return found, n
	}

	if len(ref) >= minPrefix {
		lower := strings.ToLower(ref)
		found, n := pick(func(it T) bool { return strings.HasPrefix(id(it).String(), lower) })
		switch {
		case n == 1:
			return found, nil
		case n > 1:
			return zero, fmt.Errorf("%q: %w", ref, errAmbiguous)
		}
	}

	found, n := pick(func(it T) bool { return strings.EqualFold(title(it), ref) })
	switch {
	case n == 1:
		return found, nil
	case n > 1:
		return zero, fmt.Errorf("%q: %w", ref, errAmbiguous)
	}
	return zero, fmt.Errorf("%q: %w", ref, errNoMatch)
}

func findBoard(boards []models.Board, ref string) (models.Board, error) {
	b, err := resolve(boards, ref,
		func(b models.Board) uuid.UUID { return b.ID },
		func(b models.Board) string { return b.Title })
	if err != nil {
		return b, fmt.Errorf("board %w", err)
	}
	return b, nil
}

func findList(v *view.Model, ref string) (models.List, error) {
	l, err := resolve(v.Lists(), ref,
		func(l models.List) uuid.UUID { return l.ID },
		func(l models.List) string { return l.Title })
	if err != nil {
		return l, fmt.Errorf("list %w", err)
	}
	return l, nil
}

func findCard(v *view.Model, ref string) (models.Card, error) {
	c, err := resolve(v.Cards(), ref,
		func(c models.Card) uuid.UUID { return c.ID },
		func(c models.Card) string { return c.Title })
	if err != nil {
		return c, fmt.Errorf("card %w", err)
	}
	return c, nil
}

// dropTarget turns a move target into a drop id. "list:<ref>" drops onto the
// list itself, "end:<ref>" onto the slot after its last card, and anything
// else names the card to drop onto.
func dropTarget(v *view.Model, target string) (string, error) {
	kind, ref, ok := strings.Cut(target, ":")
	if ok {
		l, err := findList(v, ref)
		if err != nil {
			return "", err
		}
		switch kind {
		case "list":
			return drag.ListZoneID(l.ID), nil
		case "end":
			return drag.EndOfListID(l.ID), nil
		}
		return "", fmt.Errorf("unknown target kind %q, want list or end", kind)
	}
	c, err := findCard(v, target)
	if err != nil {
		return "", err
	}
	return c.ID.String(), nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
