// source: notes.sql

package database

import (
	"context"
)

const createUserNote = `-- name: CreateUserNote :one
INSERT INTO user_notes (device_id, note)
VALUES ($1, $2)
RETURNING id, device_id, note, created_at
`

type CreateUserNoteParams struct {
	DeviceID int64  `json:"device_id"`
	Note     string `json:"note"`
}

func (q *Queries) CreateUserNote(ctx context.Context, arg CreateUserNoteParams) (UserNote, error) {
	row := q.db.QueryRow(ctx, createUserNote, arg.DeviceID, arg.Note)
	var i UserNote
	err := row.Scan(
		&i.ID,
		&i.DeviceID,
		&i.Note,
		&i.CreatedAt,
	)
	return i, err
}

const listUserNotes = `-- name: ListUserNotes :many
SELECT id, device_id, note, created_at
FROM user_notes
WHERE device_id = $1
ORDER BY created_at DESC, id DESC
`

func (q *Queries) ListUserNotes(ctx context.Context, deviceID int64) ([]UserNote, error) {
	rows, err := q.db.Query(ctx, listUserNotes, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []UserNote{}
	for rows.Next() {
		var i UserNote
		if err := rows.Scan(
			&i.ID,
			&i.DeviceID,
			&i.Note,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
