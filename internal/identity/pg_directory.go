package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) LookupActor(ctx context.Context, id uuid.UUID) (*Actor, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, role, display_name, created_at, updated_at
		FROM actors
		WHERE id = $1
	`, id)

	var a Actor
	err := row.Scan(&a.ID, &a.Role, &a.DisplayName, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrActorNotFound
		}
		return nil, err
	}

	return &a, nil
}

func (d *PgDirectory) IsDoctor(ctx context.Context, id uuid.UUID) (bool, error) {
	return d.hasRole(ctx, id, RoleDoctor)
}

func (d *PgDirectory) IsPatient(ctx context.Context, id uuid.UUID) (bool, error) {
	return d.hasRole(ctx, id, RolePatient)
}

func (d *PgDirectory) hasRole(ctx context.Context, id uuid.UUID, role Role) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM actors WHERE id = $1 AND role = $2)
	`, id, role).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
