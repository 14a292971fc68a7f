package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"voicecontrol/internal/db"
)

var (
	ErrNotFound  = errors.New("device not found")
	ErrDuplicate = errors.New("device id already registered")
)

const deviceColumns = `id, owner_id, device_id, name, device_type, protocol,
	address, room, status, state, last_seen, created_at, updated_at`

// Repository persists devices in Postgres. Device state round-trips through
// a JSONB column.
type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]Device, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	devices := make([]Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	return devices, nil
}

func (r *Repository) Create(ctx context.Context, ownerID string, in CreateInput) (Device, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Device{}, fmt.Errorf("generate device id: %w", err)
	}

	now := time.Now().UTC()
	d := Device{
		ID:         id.String(),
		OwnerID:    ownerID,
		DeviceID:   in.DeviceID,
		Name:       in.Name,
		DeviceType: in.DeviceType,
		Protocol:   in.Protocol,
		Address:    in.Address,
		Room:       in.Room,
		Status:     StatusOffline,
		State:      map[string]any{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO devices (id, owner_id, device_id, name, device_type, protocol,
			address, room, status, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '{}'::jsonb, $10, $10)
	`, d.ID, d.OwnerID, d.DeviceID, d.Name, d.DeviceType, d.Protocol, d.Address, d.Room, d.Status, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation &&
			pgErr.ConstraintName == "devices_owner_device_key" {
			return Device{}, ErrDuplicate
		}
		return Device{}, fmt.Errorf("insert device: %w", err)
	}

	return d, nil
}

// GetByDeviceID looks up a device by its client-facing identifier, scoped to
// the owner.
func (r *Repository) GetByDeviceID(ctx context.Context, ownerID, deviceID string) (Device, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE owner_id = $1 AND device_id = $2
	`, ownerID, deviceID)

	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrNotFound
		}
		return Device{}, err
	}

	return d, nil
}

func (r *Repository) Update(ctx context.Context, ownerID, deviceID string, in UpdateInput) (Device, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE devices
		SET name = COALESCE($3, name),
			protocol = COALESCE($4, protocol),
			address = COALESCE($5, address),
			room = COALESCE($6, room),
			status = COALESCE($7, status),
			updated_at = $8
		WHERE owner_id = $1 AND device_id = $2
		RETURNING `+deviceColumns+`
	`, ownerID, deviceID, in.Name, in.Protocol, in.Address, in.Room, in.Status, time.Now().UTC())

	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrNotFound
		}
		return Device{}, err
	}

	return d, nil
}

func (r *Repository) Delete(ctx context.Context, ownerID, deviceID string) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM devices WHERE owner_id = $1 AND device_id = $2
	`, ownerID, deviceID)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateState merges nothing: the new state replaces the stored one and
// stamps last_seen.
func (r *Repository) UpdateState(ctx context.Context, ownerID, deviceID string, state map[string]any, status string) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode device state: %w", err)
	}

	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx, `
		UPDATE devices
		SET state = $3, status = $4, last_seen = $5, updated_at = $5
		WHERE owner_id = $1 AND device_id = $2
	`, ownerID, deviceID, raw, status, now)
	if err != nil {
		return fmt.Errorf("update device state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// FindByTypeAndRoom resolves a spoken command's target. Room narrows the
// match when given; the first device by registration order wins.
func (r *Repository) FindByTypeAndRoom(ctx context.Context, ownerID, deviceType, room string) (Device, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE owner_id = $1
			AND device_type = $2
			AND ($3 = '' OR room = $3)
		ORDER BY created_at ASC
		LIMIT 1
	`, ownerID, deviceType, room)

	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrNotFound
		}
		return Device{}, err
	}

	return d, nil
}

func scanDevice(row pgx.Row) (Device, error) {
	var d Device
	var raw []byte
	err := row.Scan(&d.ID, &d.OwnerID, &d.DeviceID, &d.Name, &d.DeviceType, &d.Protocol,
		&d.Address, &d.Room, &d.Status, &raw, &d.LastSeen, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, err
		}
		return Device{}, fmt.Errorf("scan device: %w", err)
	}

	d.State = map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &d.State); err != nil {
			return Device{}, fmt.Errorf("decode device state: %w", err)
		}
	}

	return d, nil
}
