package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestDeriveMediaKind(t *testing.T) {
	tests := []struct {
		name     string
		items    []MediaItem
		expected *MediaKind
	}{
		{"none", nil, nil},
		{"images only", []MediaItem{{Kind: MediaKindImage}, {Kind: MediaKindImage}}, ptr(MediaKindImage)},
		{"video only", []MediaItem{{Kind: MediaKindVideo}}, ptr(MediaKindVideo)},
		{"both", []MediaItem{{Kind: MediaKindImage}, {Kind: MediaKindVideo}}, ptr(MediaKindMixed)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveMediaKind(tt.items))
		})
	}
}

func TestCounterField_Valid(t *testing.T) {
	assert.True(t, CounterLikes.Valid())
	assert.True(t, CounterRetweets.Valid())
	assert.True(t, CounterReplies.Valid())
	assert.False(t, CounterField("id").Valid())
	assert.False(t, CounterField("likes_count; DROP TABLE posts").Valid())
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, fiber.StatusBadRequest, StatusForError(NewValidationError("bad")))
	assert.Equal(t, fiber.StatusNotFound, StatusForError(NewNotFoundError("Post", 1)))
	assert.Equal(t, fiber.StatusConflict, StatusForError(NewConflictError("dup", nil)))
	assert.Equal(t, fiber.StatusServiceUnavailable, StatusForError(NewStoreUnavailableError(errors.New("down"))))
	assert.Equal(t, fiber.StatusInternalServerError, StatusForError(NewInvariantViolationError("negative")))
	assert.Equal(t, fiber.StatusInternalServerError, StatusForError(errors.New("plain")))

	wrapped := fmt.Errorf("toggle like: %w", NewNotFoundError("Post", 9))
	assert.Equal(t, fiber.StatusNotFound, StatusForError(wrapped))
	assert.True(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(wrapped, CodeConflict))
}

func ptr(k MediaKind) *MediaKind { return &k }
