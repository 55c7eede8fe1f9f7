package directory

import (
	"brokerage/pkg/model"
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDirectory reads the back office tables directly.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) FindProperty(ctx context.Context, id int64) (*model.Property, error) {
	query := `
		SELECT id, title, owner_id, COALESCE(city, '')
		FROM properties
		WHERE id = $1
	`

	var p model.Property
	err := d.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Title, &p.OwnerID, &p.City)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find property %d: %w", id, err)
	}
	return &p, nil
}

func (d *PostgresDirectory) FindUser(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, name, email, role
		FROM users
		WHERE id = $1
	`

	var (
		u    model.User
		role string
	)
	err := d.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user %d: %w", id, err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

func (d *PostgresDirectory) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}
