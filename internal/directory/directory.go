// Package directory provides read-only lookups of properties and users
// owned by the back office.
package directory

import (
	"brokerage/pkg/model"
	"context"
	"errors"
)

var ErrNotFound = errors.New("directory entry not found")

type PropertyDirectory interface {
	FindProperty(ctx context.Context, id int64) (*model.Property, error)
}

type UserDirectory interface {
	FindUser(ctx context.Context, id int64) (*model.User, error)
}

// Directory is both lookups behind one value, which is how the Postgres
// adapter and its decorators are composed.
type Directory interface {
	PropertyDirectory
	UserDirectory
}
