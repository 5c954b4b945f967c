package handlers

import (
	"context"
	"net/http"

	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/shared"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
)

/*
handles routes:
GET /cards?board_id=|list_id=|id= - cards ordered by position
POST /cards - append a card to a list
PATCH /cards/{id} - title, description, position, list_id
DELETE /cards?id=|list_id=|board_id=
*/
func (h *Handler) selectCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	f, err := queryFilter(r, store.ByBoard, store.ByList, store.ByID)
	if err != nil {
		shared.SendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if !h.authorize(ctx, w, userID, store.Cards, f) {
		return
	}
	cards, err := h.Cards.SelectCards(ctx, f)
	if err != nil {
		sendStoreError(w, "Cards", err)
		return
	}
	shared.SendJSON(w, http.StatusOK, cards)
}

func (h *Handler) createCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var input struct {
		ListID      uuid.UUID `json:"list_id"`
		Title       string    `json:"title"`
		Description *string   `json:"description"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	title, err := shared.ValidateCardTitle(input.Title)
	if err != nil {
		sendValidationError(w, err)
		return
	}
	var desc *string
	if input.Description != nil {
		d, err := shared.ValidateDescription(*input.Description)
		if err != nil {
			sendValidationError(w, err)
			return
		}
		if d != "" {
			desc = &d
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if _, ok := h.ownedList(ctx, w, userID, input.ListID); !ok {
		return
	}
	card, err := h.Cards.InsertCard(ctx, models.Card{ListID: input.ListID, Title: title, Description: desc})
	if err != nil {
		sendStoreError(w, "List", err)
		return
	}
	shared.SendJSON(w, http.StatusCreated, card)
}

// updateCard keeps board_id in step with list_id: a card moved to another
// list always takes that list's board, whatever the request says.
func (h *Handler) updateCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	cardID, err := pathID(r)
	if err != nil {
		shared.SendError(w, "Invalid card ID", http.StatusBadRequest)
		return
	}
	var patch store.CardPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if patch.Empty() {
		shared.SendError(w, "Nothing to update", http.StatusBadRequest)
		return
	}
	if patch.Title != nil {
		title, err := shared.ValidateCardTitle(*patch.Title)
		if err != nil {
			sendValidationError(w, err)
			return
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		desc, err := shared.ValidateDescription(*patch.Description)
		if err != nil {
			sendValidationError(w, err)
			return
		}
		patch.Description = &desc
	}
	if patch.Position != nil && *patch.Position < 0 {
		shared.SendError(w, "Position must be >= 0", http.StatusBadRequest)
		return
	}
	if patch.BoardID != nil && patch.ListID == nil {
		shared.SendError(w, "board_id can only change together with list_id", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if _, ok := h.ownedCard(ctx, w, userID, cardID); !ok {
		return
	}
	if patch.ListID != nil {
		target, ok := h.ownedList(ctx, w, userID, *patch.ListID)
		if !ok {
			return
		}
		patch.BoardID = &target.BoardID
	}
	n, err := h.Cards.UpdateCards(ctx, store.ID(cardID), patch)
	if err != nil {
		sendStoreError(w, "Card", err)
		return
	}
	shared.SendJSON(w, http.StatusOK, affectedResponse{Affected: n})
}

func (h *Handler) deleteCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	f, err := queryFilter(r, store.ByID, store.ByList, store.ByBoard)
	if err != nil {
		shared.SendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if !h.authorize(ctx, w, userID, store.Cards, f) {
		return
	}
	n, err := h.Cards.DeleteCards(ctx, f)
	if err != nil {
		sendStoreError(w, "Card", err)
		return
	}
	shared.SendJSON(w, http.StatusOK, affectedResponse{Affected: n})
}
