// source: risk.sql

package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getRiskPrediction = `-- name: GetRiskPrediction :one
SELECT id, device_id, cluster_name, risk_level, explanation, diseases, created_at
FROM risk_analysis_predictions
WHERE device_id = $1 AND cluster_name = $2
`

type GetRiskPredictionParams struct {
	DeviceID    int64  `json:"device_id"`
	ClusterName string `json:"cluster_name"`
}

func (q *Queries) GetRiskPrediction(ctx context.Context, arg GetRiskPredictionParams) (RiskAnalysisPrediction, error) {
	row := q.db.QueryRow(ctx, getRiskPrediction, arg.DeviceID, arg.ClusterName)
	var i RiskAnalysisPrediction
	err := row.Scan(
		&i.ID,
		&i.DeviceID,
		&i.ClusterName,
		&i.RiskLevel,
		&i.Explanation,
		&i.Diseases,
		&i.CreatedAt,
	)
	return i, err
}

const createRiskPrediction = `-- name: CreateRiskPrediction :exec
INSERT INTO risk_analysis_predictions (device_id, cluster_name, risk_level, explanation, diseases, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

type CreateRiskPredictionParams struct {
	DeviceID    int64              `json:"device_id"`
	ClusterName string             `json:"cluster_name"`
	RiskLevel   string             `json:"risk_level"`
	Explanation string             `json:"explanation"`
	Diseases    []byte             `json:"diseases"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) CreateRiskPrediction(ctx context.Context, arg CreateRiskPredictionParams) error {
	_, err := q.db.Exec(ctx, createRiskPrediction,
		arg.DeviceID,
		arg.ClusterName,
		arg.RiskLevel,
		arg.Explanation,
		arg.Diseases,
		arg.CreatedAt,
	)
	return err
}

const updateRiskPrediction = `-- name: UpdateRiskPrediction :exec
UPDATE risk_analysis_predictions
SET risk_level = $2, explanation = $3, diseases = $4, created_at = $5
WHERE id = $1
`

type UpdateRiskPredictionParams struct {
	ID          int64              `json:"id"`
	RiskLevel   string             `json:"risk_level"`
	Explanation string             `json:"explanation"`
	Diseases    []byte             `json:"diseases"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) UpdateRiskPrediction(ctx context.Context, arg UpdateRiskPredictionParams) error {
	_, err := q.db.Exec(ctx, updateRiskPrediction,
		arg.ID,
		arg.RiskLevel,
		arg.Explanation,
		arg.Diseases,
		arg.CreatedAt,
	)
	return err
}

const listRiskPredictions = `-- name: ListRiskPredictions :many
SELECT id, device_id, cluster_name, risk_level, explanation, diseases, created_at
FROM risk_analysis_predictions
WHERE device_id = $1
ORDER BY created_at DESC, cluster_name
`

func (q *Queries) ListRiskPredictions(ctx context.Context, deviceID int64) ([]RiskAnalysisPrediction, error) {
	rows, err := q.db.Query(ctx, listRiskPredictions, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []RiskAnalysisPrediction{}
	for rows.Next() {
		var i RiskAnalysisPrediction
		if err := rows.Scan(
			&i.ID,
			&i.DeviceID,
			&i.ClusterName,
			&i.RiskLevel,
			&i.Explanation,
			&i.Diseases,
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
