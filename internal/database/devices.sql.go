// source: devices.sql

package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createDevice = `-- name: CreateDevice :one
INSERT INTO devices (device_id, device_name, device_model, os_version, last_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, device_id, device_name, device_model, os_version, last_active, created_at
`

type CreateDeviceParams struct {
	DeviceID    string             `json:"device_id"`
	DeviceName  pgtype.Text        `json:"device_name"`
	DeviceModel pgtype.Text        `json:"device_model"`
	OsVersion   pgtype.Text        `json:"os_version"`
	LastActive  pgtype.Timestamptz `json:"last_active"`
}

func (q *Queries) CreateDevice(ctx context.Context, arg CreateDeviceParams) (Device, error) {
	row := q.db.QueryRow(ctx, createDevice,
		arg.DeviceID,
		arg.DeviceName,
		arg.DeviceModel,
		arg.OsVersion,
		arg.LastActive,
	)
	var i Device
	err := row.Scan(
		&i.ID,
		&i.DeviceID,
		&i.DeviceName,
		&i.DeviceModel,
		&i.OsVersion,
		&i.LastActive,
		&i.CreatedAt,
	)
	return i, err
}

const getDeviceByExternalID = `-- name: GetDeviceByExternalID :one
SELECT id, device_id, device_name, device_model, os_version, last_active, created_at
FROM devices
WHERE device_id = $1
`

func (q *Queries) GetDeviceByExternalID(ctx context.Context, deviceID string) (Device, error) {
	row := q.db.QueryRow(ctx, getDeviceByExternalID, deviceID)
	var i Device
	err := row.Scan(
		&i.ID,
		&i.DeviceID,
		&i.DeviceName,
		&i.DeviceModel,
		&i.OsVersion,
		&i.LastActive,
		&i.CreatedAt,
	)
	return i, err
}

const updateDevice = `-- name: UpdateDevice :one
UPDATE devices
SET device_name = $2,
    device_model = $3,
    os_version = $4,
    last_active = $5
WHERE id = $1
RETURNING id, device_id, device_name, device_model, os_version, last_active, created_at
`

type UpdateDeviceParams struct {
	ID          int64              `json:"id"`
	DeviceName  pgtype.Text        `json:"device_name"`
	DeviceModel pgtype.Text        `json:"device_model"`
	OsVersion   pgtype.Text        `json:"os_version"`
	LastActive  pgtype.Timestamptz `json:"last_active"`
}

func (q *Queries) UpdateDevice(ctx context.Context, arg UpdateDeviceParams) (Device, error) {
	row := q.db.QueryRow(ctx, updateDevice,
		arg.ID,
		arg.DeviceName,
		arg.DeviceModel,
		arg.OsVersion,
		arg.LastActive,
	)
	var i Device
	err := row.Scan(
		&i.ID,
		&i.DeviceID,
		&i.DeviceName,
		&i.DeviceModel,
		&i.OsVersion,
		&i.LastActive,
		&i.CreatedAt,
	)
	return i, err
}
