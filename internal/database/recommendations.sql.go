// source: recommendations.sql

package database

import (
	"context"
)

const listRecommendations = `-- name: ListRecommendations :many
SELECT id, device_id, category, recommendation, explanation, frequency, accepted, created_at
FROM recommendations
WHERE device_id = $1
ORDER BY created_at DESC, id DESC
`

func (q *Queries) ListRecommendations(ctx context.Context, deviceID int64) ([]Recommendation, error) {
	rows, err := q.db.Query(ctx, listRecommendations, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Recommendation{}
	for rows.Next() {
		var i Recommendation
		if err := rows.Scan(
			&i.ID,
			&i.DeviceID,
			&i.Category,
			&i.Recommendation,
			&i.Explanation,
			&i.Frequency,
			&i.Accepted,
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

const deleteUnacceptedRecommendations = `-- name: DeleteUnacceptedRecommendations :execrows
DELETE FROM recommendations
WHERE device_id = $1 AND accepted = FALSE
`

func (q *Queries) DeleteUnacceptedRecommendations(ctx context.Context, deviceID int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteUnacceptedRecommendations, deviceID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const createRecommendation = `-- name: CreateRecommendation :one
INSERT INTO recommendations (device_id, category, recommendation, explanation, frequency, accepted)
VALUES ($1, $2, $3, $4, $5, FALSE)
RETURNING id, device_id, category, recommendation, explanation, frequency, accepted, created_at
`

type CreateRecommendationParams struct {
	DeviceID       int64  `json:"device_id"`
	Category       string `json:"category"`
	Recommendation string `json:"recommendation"`
	Explanation    string `json:"explanation"`
	Frequency      string `json:"frequency"`
}

func (q *Queries) CreateRecommendation(ctx context.Context, arg CreateRecommendationParams) (Recommendation, error) {
	row := q.db.QueryRow(ctx, createRecommendation,
		arg.DeviceID,
		arg.Category,
		arg.Recommendation,
		arg.Explanation,
		arg.Frequency,
	)
	var i Recommendation
	err := row.Scan(
		&i.ID,
		&i.DeviceID,
		&i.Category,
		&i.Recommendation,
		&i.Explanation,
		&i.Frequency,
		&i.Accepted,
		&i.CreatedAt,
	)
	return i, err
}

const setRecommendationAcceptance = `-- name: SetRecommendationAcceptance :one
UPDATE recommendations
SET accepted = $2
WHERE id = $1
RETURNING id, device_id, category, recommendation, explanation, frequency, accepted, created_at
`

type SetRecommendationAcceptanceParams struct {
	ID       int64 `json:"id"`
	Accepted bool  `json:"accepted"`
}

func (q *Queries) SetRecommendationAcceptance(ctx context.Context, arg SetRecommendationAcceptanceParams) (Recommendation, error) {
	row := q.db.QueryRow(ctx, setRecommendationAcceptance, arg.ID, arg.Accepted)
	var i Recommendation
	err := row.Scan(
		&i.ID,
		&i.DeviceID,
		&i.Category,
		&i.Recommendation,
		&i.Explanation,
		&i.Frequency,
		&i.Accepted,
		&i.CreatedAt,
	)
	return i, err
}

const countRecommendationsByCategory = `-- name: CountRecommendationsByCategory :many
SELECT category, COUNT(*) AS total
FROM recommendations
WHERE device_id = $1
GROUP BY category
ORDER BY category
`

type CountRecommendationsByCategoryRow struct {
	Category string `json:"category"`
	Total    int64  `json:"total"`
}

func (q *Queries) CountRecommendationsByCategory(ctx context.Context, deviceID int64) ([]CountRecommendationsByCategoryRow, error) {
	rows, err := q.db.Query(ctx, countRecommendationsByCategory, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CountRecommendationsByCategoryRow{}
	for rows.Next() {
		var i CountRecommendationsByCategoryRow
		if err := rows.Scan(&i.Category, &i.Total); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
