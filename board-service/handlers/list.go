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
GET /lists?board_id=|id= - lists ordered by position
POST /lists - append a list to a board
PATCH /lists/{id} - title and/or position
DELETE /lists?id=|board_id= - list rows only, cards are deleted by the caller
*/
func (h *Handler) selectLists(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	f, err := queryFilter(r, store.ByBoard, store.ByID)
	if err != nil {
		shared.SendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if !h.authorize(ctx, w, userID, store.Lists, f) {
		return
	}
	lists, err := h.Lists.SelectLists(ctx, f)
	if err != nil {
		sendStoreError(w, "Lists", err)
		return
	}
	shared.SendJSON(w, http.StatusOK, lists)
}

func (h *Handler) createList(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var input struct {
		BoardID uuid.UUID `json:"board_id"`
		Title   string    `json:"title"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	title, err := shared.ValidateListTitle(input.Title)
	if err != nil {
		sendValidationError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if _, ok := h.ownedBoard(ctx, w, userID, input.BoardID); !ok {
		return
	}
	list, err := h.Lists.InsertList(ctx, models.List{BoardID: input.BoardID, Title: title})
	if err != nil {
		sendStoreError(w, "Board", err)
		return
	}
	shared.SendJSON(w, http.StatusCreated, list)
}

func (h *Handler) updateList(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	listID, err := pathID(r)
	if err != nil {
		shared.SendError(w, "Invalid list ID", http.StatusBadRequest)
		return
	}
	var patch store.ListPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if patch.Empty() {
		shared.SendError(w, "Nothing to update", http.StatusBadRequest)
		return
	}
	if patch.Title != nil {
		title, err := shared.ValidateListTitle(*patch.Title)
		if err != nil {
			sendValidationError(w, err)
			return
		}
		patch.Title = &title
	}
	if patch.Position != nil && *patch.Position < 0 {
		shared.SendError(w, "Position must be >= 0", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if _, ok := h.ownedList(ctx, w, userID, listID); !ok {
		return
	}
	n, err := h.Lists.UpdateLists(ctx, store.ID(listID), patch)
	if err != nil {
		sendStoreError(w, "List", err)
		return
	}
	shared.SendJSON(w, http.StatusOK, affectedResponse{Affected: n})
}

func (h *Handler) deleteLists(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	f, err := queryFilter(r, store.ByID, store.ByBoard)
	if err != nil {
		shared.SendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if !h.authorize(ctx, w, userID, store.Lists, f) {
		return
	}
	n, err := h.Lists.DeleteLists(ctx, f)
	if err != nil {
		sendStoreError(w, "List", err)
		return
	}
	shared.SendJSON(w, http.StatusOK, affectedResponse{Affected: n})
}
