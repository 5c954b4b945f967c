package handlers

import (
	"context"
	"net/http"

	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/shared"
	"github.com/chepyr/go-kanban/shared/models"
)

/*
handles routes:
GET /boards - boards of the caller, oldest first
POST /boards - create board
GET, PUT, DELETE /boards/{id}
*/
func (h *Handler) listBoards(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	boards, err := h.Boards.SelectBoards(ctx, store.User(userID))
	if err != nil {
		sendStoreError(w, "Boards", err)
		return
	}
	shared.SendJSON(w, http.StatusOK, boards)
}

type boardInput struct {
	Title string `json:"title"`
}

func (h *Handler) createBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var input boardInput
	if !decodeJSON(w, r, &input) {
		return
	}
	title, err := shared.ValidateBoardTitle(input.Title)
	if err != nil {
		sendValidationError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	board, err := h.Boards.InsertBoard(ctx, models.Board{UserID: userID, Title: title})
	if err != nil {
		sendStoreError(w, "Board", err)
		return
	}
	w.Header().Set("Location", "/boards/"+board.ID.String())
	shared.SendJSON(w, http.StatusCreated, board)
}

func (h *Handler) getBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	boardID, err := pathID(r)
	if err != nil {
		shared.SendError(w, "Invalid board ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	board, ok := h.ownedBoard(ctx, w, userID, boardID)
	if !ok {
		return
	}
	shared.SendJSON(w, http.StatusOK, board)
}

func (h *Handler) updateBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	boardID, err := pathID(r)
	if err != nil {
		shared.SendError(w, "Invalid board ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	board, ok := h.ownedBoard(ctx, w, userID, boardID)
	if !ok {
		return
	}
	var input boardInput
	if !decodeJSON(w, r, &input) {
		return
	}
	title, err := shared.ValidateBoardTitle(input.Title)
	if err != nil {
		sendValidationError(w, err)
		return
	}
	if _, err := h.Boards.UpdateBoards(ctx, store.ID(board.ID), store.BoardPatch{Title: &title}); err != nil {
		sendStoreError(w, "Board", err)
		return
	}
	updated, ok := h.ownedBoard(ctx, w, userID, boardID)
	if !ok {
		return
	}
	shared.SendJSON(w, http.StatusOK, updated)
}

// deleteBoard removes the board with all of its lists and cards.
func (h *Handler) deleteBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	boardID, err := pathID(r)
	if err != nil {
		shared.SendError(w, "Invalid board ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if _, ok := h.ownedBoard(ctx, w, userID, boardID); !ok {
		return
	}
	n, err := h.Boards.DeleteBoards(ctx, store.ID(boardID))
	if err != nil {
		sendStoreError(w, "Board", err)
		return
	}
	shared.SendJSON(w, http.StatusOK, affectedResponse{Affected: n})
}
