package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/notes-auth/internal/logging"
	"github.com/iliyamo/notes-auth/internal/middleware"
	"github.com/iliyamo/notes-auth/internal/model"
	"github.com/iliyamo/notes-auth/internal/repository"
	"github.com/iliyamo/notes-auth/internal/service"
	"github.com/iliyamo/notes-auth/internal/utils"
)

// NoteStore is the persistence the note handlers need. Mutations take the
// caller's id and report repository.ErrNotFound / repository.ErrForbidden.
type NoteStore interface {
	Create(ctx context.Context, n model.Note) error
	ListByOwner(ctx context.Context, ownerID string) ([]model.Note, error)
	UpdateByIDAndOwner(ctx context.Context, n model.Note) (model.Note, error)
	DeleteByIDAndOwner(ctx context.Context, id, ownerID string) error
}

// CacheInvalidator drops cached list responses of a user after a write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// NoteHandler serves the caller's own notes. The owner is always the
// authenticated identity; owner fields in requests are never read.
type NoteHandler struct {
	Notes NoteStore
	Cache CacheInvalidator
	Clock service.Clock
	Log   logging.Logger
	NewID func() string
}

func NewNoteHandler(notes NoteStore, cache CacheInvalidator, clock service.Clock, log logging.Logger) *NoteHandler {
	if clock == nil {
		clock = service.NewRealClock()
	}
	if log == nil {
		log = logging.Discard()
	}
	return &NoteHandler{Notes: notes, Cache: cache, Clock: clock, Log: log, NewID: utils.NewID}
}

type noteReq struct {
	ID      string `json:"id"`
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"maxbytes=65535"`
	Color   string `json:"color" validate:"max=16"`
}

type noteResp struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

func toNoteResp(n model.Note) noteResp {
	return noteResp{ID: n.ID, Title: n.Title, Content: n.Content, Color: n.Color, CreatedAt: n.CreatedAt}
}

// Save creates a note, or updates the caller's note when an id is given.
func (h *NoteHandler) Save(c echo.Context) error {
	ownerID, err := middleware.RequireUserID(c.Request().Context())
	if err != nil {
		return err
	}
	var req noteReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	note := model.Note{
		ID:      req.ID,
		OwnerID: ownerID,
		Title:   req.Title,
		Content: req.Content,
		Color:   req.Color,
	}
	if note.ID == "" {
		note.ID = h.NewID()
		note.CreatedAt = h.Clock.Now().UTC()
		if err := h.Notes.Create(ctx, note); err != nil {
			h.Log.Error(ctx, "create note failed", "user_id", ownerID, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create note failed"})
		}
	} else {
		note, err = h.Notes.UpdateByIDAndOwner(ctx, note)
		if err != nil {
			return h.writeNoteError(c, err, "update note failed")
		}
	}

	h.invalidate(ctx, ownerID)
	return c.JSON(http.StatusOK, toNoteResp(note))
}

// List returns the caller's notes, newest first.
func (h *NoteHandler) List(c echo.Context) error {
	ownerID, err := middleware.RequireUserID(c.Request().Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	notes, err := h.Notes.ListByOwner(ctx, ownerID)
	if err != nil {
		h.Log.Error(ctx, "list notes failed", "user_id", ownerID, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list notes failed"})
	}
	out := make([]noteResp, 0, len(notes))
	for _, n := range notes {
		out = append(out, toNoteResp(n))
	}
	return c.JSON(http.StatusOK, out)
}

// Delete removes the caller's note: 204 on success, 404 when missing and
// 403 when the note belongs to someone else.
func (h *NoteHandler) Delete(c echo.Context) error {
	ownerID, err := middleware.RequireUserID(c.Request().Context())
	if err != nil {
		return err
	}
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": []string{"id is required."}})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Notes.DeleteByIDAndOwner(ctx, id, ownerID); err != nil {
		return h.writeNoteError(c, err, "delete note failed")
	}
	h.invalidate(ctx, ownerID)
	return c.NoContent(http.StatusNoContent)
}

func (h *NoteHandler) writeNoteError(c echo.Context, err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "note not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	h.Log.Error(c.Request().Context(), msg, "error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}

func (h *NoteHandler) invalidate(ctx context.Context, userID string) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Invalidate(context.WithoutCancel(ctx), userID); err != nil {
		h.Log.Warn(ctx, "cache invalidation failed", "user_id", userID, "error", err)
	}
}
