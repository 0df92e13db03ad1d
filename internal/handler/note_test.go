package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/notes-auth/internal/middleware"
	"github.com/iliyamo/notes-auth/internal/model"
	"github.com/iliyamo/notes-auth/internal/repository"
	"github.com/iliyamo/notes-auth/internal/service"
)

type memNotes struct {
	mu    sync.Mutex
	notes map[string]model.Note
}

func newMemNotes() *memNotes { return &memNotes{notes: map[string]model.Note{}} }

func (m *memNotes) Create(_ context.Context, n model.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[n.ID] = n
	return nil
}

func (m *memNotes) ListByOwner(_ context.Context, ownerID string) ([]model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Note{}
	for _, n := range m.notes {
		if n.OwnerID == ownerID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memNotes) UpdateByIDAndOwner(_ context.Context, n model.Note) (model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.notes[n.ID]
	if !ok {
		return model.Note{}, repository.ErrNotFound
	}
	if cur.OwnerID != n.OwnerID {
		return model.Note{}, repository.ErrForbidden
	}
	cur.Title, cur.Content, cur.Color = n.Title, n.Content, n.Color
	m.notes[n.ID] = cur
	return cur, nil
}

func (m *memNotes) DeleteByIDAndOwner(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.notes[id]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.OwnerID != ownerID {
		return repository.ErrForbidden
	}
	delete(m.notes, id)
	return nil
}

type countingInvalidator struct{ users []string }

func (c *countingInvalidator) Invalidate(_ context.Context, userID string) error {
	c.users = append(c.users, userID)
	return nil
}

// trustHeader stands in for the gate in handler tests.
func trustHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if id := c.Request().Header.Get("X-User"); id != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(middleware.WithUserID(req.Context(), id)))
		}
		return next(c)
	}
}

type noteFixture struct {
	e     *echo.Echo
	store *memNotes
	cache *countingInvalidator
	clock *service.MockClock
}

func newNoteFixture() *noteFixture {
	f := &noteFixture{
		e:     echo.New(),
		store: newMemNotes(),
		cache: &countingInvalidator{},
		clock: service.NewMockClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
	}
	f.e.Validator = NewRequestValidator()
	h := NewNoteHandler(f.store, f.cache, f.clock, nil)
	seq := 0
	h.NewID = func() string { seq++; return "n-" + string(rune('0'+seq)) }
	g := f.e.Group("/api", trustHeader)
	g.POST("/notes", h.Save)
	g.GET("/notes", h.List)
	g.DELETE("/notes/:id", h.Delete)
	return f
}

func (f *noteFixture) do(method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestNoteSave_CreatesOwnedNote(t *testing.T) {
	f := newNoteFixture()

	rec := f.do(http.MethodPost, "/api/notes", "u-1", `{"title":"t","content":"c","color":"#fff","ownerId":"u-2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"n-1","title":"t","content":"c","color":"#fff","createdAt":"2024-05-01T10:00:00Z"}`, rec.Body.String())

	assert.Equal(t, "u-1", f.store.notes["n-1"].OwnerID)
	assert.Equal(t, []string{"u-1"}, f.cache.users)
}

func TestNoteSave_UpdatesOwnNote(t *testing.T) {
	f := newNoteFixture()
	f.do(http.MethodPost, "/api/notes", "u-1", `{"title":"t"}`)
	f.clock.Advance(time.Hour)

	rec := f.do(http.MethodPost, "/api/notes", "u-1", `{"id":"n-1","title":"new","content":"body"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got noteResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, "body", got.Content)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), got.CreatedAt)
}

func TestNoteSave_UpdateOutcomes(t *testing.T) {
	f := newNoteFixture()
	f.do(http.MethodPost, "/api/notes", "u-1", `{"title":"t"}`)

	rec := f.do(http.MethodPost, "/api/notes", "u-2", `{"id":"n-1","title":"hijack"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "t", f.store.notes["n-1"].Title)

	rec = f.do(http.MethodPost, "/api/notes", "u-1", `{"id":"missing","title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNoteSave_Validation(t *testing.T) {
	f := newNoteFixture()

	rec := f.do(http.MethodPost, "/api/notes", "u-1", `{"content":"no title"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"errors":["title is required."]}`, rec.Body.String())
	assert.Empty(t, f.store.notes)
}

func TestNoteList_OnlyCallersNotesNewestFirst(t *testing.T) {
	f := newNoteFixture()
	f.do(http.MethodPost, "/api/notes", "u-1", `{"title":"first"}`)
	f.clock.Advance(time.Minute)
	f.do(http.MethodPost, "/api/notes", "u-1", `{"title":"second"}`)
	f.do(http.MethodPost, "/api/notes", "u-2", `{"title":"other"}`)

	rec := f.do(http.MethodGet, "/api/notes?ownerId=u-2", "u-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []noteResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Title)
	assert.Equal(t, "first", got[1].Title)
}

func TestNoteList_EmptyIsArray(t *testing.T) {
	f := newNoteFixture()
	rec := f.do(http.MethodGet, "/api/notes", "u-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestNoteDelete(t *testing.T) {
	f := newNoteFixture()
	f.do(http.MethodPost, "/api/notes", "u-1", `{"title":"t"}`)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, "/api/notes/n-1", "u-2", "").Code)
	assert.Contains(t, f.store.notes, "n-1")

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/notes/n-1", "u-1", "").Code)
	assert.NotContains(t, f.store.notes, "n-1")

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/notes/n-1", "u-1", "").Code)
}

func TestNoteHandlers_RequireIdentity(t *testing.T) {
	f := newNoteFixture()
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/notes", "", "").Code)
}

func TestNoteSave_ColorLongerThanColumnIsRejected(t *testing.T) {
	f := newNoteFixture()

	rec := f.do(http.MethodPost, "/api/notes", "u-1", `{"title":"t","color":"`+strings.Repeat("c", 17)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"errors":["color must be at most 16 characters."]}`, rec.Body.String())
	assert.Empty(t, f.store.notes)

	rec = f.do(http.MethodPost, "/api/notes", "u-1", `{"title":"t","color":"`+strings.Repeat("c", 16)+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNoteSave_ContentIsBoundedInBytes(t *testing.T) {
	f := newNoteFixture()

	// 21846 three-byte runes: under 65535 characters, over 65535 bytes.
	rec := f.do(http.MethodPost, "/api/notes", "u-1", `{"title":"t","content":"`+strings.Repeat("€", 21846)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"errors":["content must be at most 65535 bytes."]}`, rec.Body.String())
	assert.Empty(t, f.store.notes)

	rec = f.do(http.MethodPost, "/api/notes", "u-1", `{"title":"t","content":"`+strings.Repeat("€", 21845)+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}
