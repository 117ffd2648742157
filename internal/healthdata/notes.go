package healthdata

import (
	"context"
	"fmt"
	"strings"

	"eon-server/internal/database"
	"eon-server/internal/utility"
)

// CreateNote appends a free-text note for a device.
func (s *Service) CreateNote(ctx context.Context, externalID, note string) (database.UserNote, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return database.UserNote{}, fmt.Errorf("%w: note is required", utility.ErrValidation)
	}
	device, err := s.ResolveDevice(ctx, externalID)
	if err != nil {
		return database.UserNote{}, err
	}
	created, err := s.store.CreateUserNote(ctx, database.CreateUserNoteParams{DeviceID: device.ID, Note: note})
	if err != nil {
		return database.UserNote{}, fmt.Errorf("create note: %w", err)
	}
	return created, nil
}

// ListNotes returns a device's notes, newest first.
func (s *Service) ListNotes(ctx context.Context, externalID string) ([]database.UserNote, error) {
	device, err := s.ResolveDevice(ctx, externalID)
	if err != nil {
		return nil, err
	}
	notes, err := s.store.ListUserNotes(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// FormatNotes renders notes one per line as "2006-01-02 15:04:05 UTC: text".
func FormatNotes(notes []database.UserNote) string {
	if len(notes) == 0 {
		return "No notes recorded."
	}
	var b strings.Builder
	for i, n := range notes {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s UTC: %s", n.CreatedAt.Time.UTC().Format("2006-01-02 15:04:05"), n.Note)
	}
	return b.String()
}
