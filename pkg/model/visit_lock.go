package model

import "time"

// VisitLock is an advisory lock on a (property, instant) slot, held while a
// new visit is checked for conflicts and inserted.
type VisitLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
