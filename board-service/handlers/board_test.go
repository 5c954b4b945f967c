package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
)

func TestCreateBoard_Validation(t *testing.T) {
	h := newTestHandler(t).Routes()
	user := uuid.New()

	rec := do(t, h, user, http.MethodPost, "/boards", map[string]string{"title": "ab"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("short title: want 400, got %d", rec.Code)
	}
	rec = do(t, h, user, http.MethodPost, "/boards", map[string]string{"title": strings.Repeat("x", 101)})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("long title: want 400, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/boards", strings.NewReader(`{"title":"Roadmap"}`))
	req.Header.Set("Authorization", bearerForUser(t, user))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("content type: want 415, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/boards", strings.NewReader(`{"title":`))
	req.Header.Set("Authorization", bearerForUser(t, user))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad json: want 400, got %d", rr.Code)
	}
}

func TestBoards_CreateListAndGet(t *testing.T) {
	h := newTestHandler(t).Routes()
	user := uuid.New()

	rec := do(t, h, user, http.MethodPost, "/boards", map[string]string{"title": "  Roadmap  "})
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	created := decode[models.Board](t, rec)
	if created.Title != "Roadmap" {
		t.Errorf("title not trimmed: %q", created.Title)
	}
	if created.UserID != user {
		t.Errorf("owner = %s, want %s", created.UserID, user)
	}
	if loc := rec.Header().Get("Location"); loc != "/boards/"+created.ID.String() {
		t.Errorf("Location = %q", loc)
	}

	// another user's boards are not listed
	do(t, h, uuid.New(), http.MethodPost, "/boards", map[string]string{"title": "Other"})

	rec = do(t, h, user, http.MethodGet, "/boards", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: want 200, got %d", rec.Code)
	}
	boards := decode[[]models.Board](t, rec)
	if len(boards) != 1 || boards[0].ID != created.ID {
		t.Fatalf("unexpected boards: %+v", boards)
	}

	rec = do(t, h, user, http.MethodGet, "/boards/"+created.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: want 200, got %d", rec.Code)
	}
}

func TestGetBoard_Ownership(t *testing.T) {
	h := newTestHandler(t).Routes()
	owner := uuid.New()
	board, _ := seedBoard(t, h, owner)

	rec := do(t, h, uuid.New(), http.MethodGet, "/boards/"+board.ID.String(), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign user: want 403, got %d", rec.Code)
	}
	rec = do(t, h, owner, http.MethodGet, "/boards/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown board: want 404, got %d", rec.Code)
	}
	rec = do(t, h, owner, http.MethodGet, "/boards/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: want 400, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/boards/"+board.ID.String(), nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token: want 401, got %d", rr.Code)
	}
}

func TestUpdateBoard(t *testing.T) {
	h := newTestHandler(t).Routes()
	owner := uuid.New()
	board, _ := seedBoard(t, h, owner)

	rec := do(t, h, owner, http.MethodPut, "/boards/"+board.ID.String(), map[string]string{"title": "Backlog"})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[models.Board](t, rec); got.Title != "Backlog" {
		t.Fatalf("title = %q, want Backlog", got.Title)
	}

	rec = do(t, h, uuid.New(), http.MethodPut, "/boards/"+board.ID.String(), map[string]string{"title": "Mine now"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign user: want 403, got %d", rec.Code)
	}
}

func TestDeleteBoard_Cascades(t *testing.T) {
	h := newTestHandler(t).Routes()
	owner := uuid.New()
	board, list := seedBoard(t, h, owner)
	do(t, h, owner, http.MethodPost, "/cards", map[string]any{"list_id": list.ID, "title": "Write tests"})

	rec := do(t, h, owner, http.MethodDelete, "/boards/"+board.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[affectedResponse](t, rec); got.Affected != 1 {
		t.Fatalf("affected = %d, want 1", got.Affected)
	}

	rec = do(t, h, owner, http.MethodGet, "/boards/"+board.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted board: want 404, got %d", rec.Code)
	}
	rec = do(t, h, owner, http.MethodGet, "/lists?id="+list.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("list of deleted board: want 404, got %d", rec.Code)
	}
}
