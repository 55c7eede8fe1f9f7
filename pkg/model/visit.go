package model

import (
	"time"
)

type VisitStatus string

const (
	StatusScheduled           VisitStatus = "SCHEDULED"
	StatusWaitingConfirmation VisitStatus = "WAITING_CONFIRMATION"
	StatusCanceled            VisitStatus = "CANCELED"
	StatusDone                VisitStatus = "DONE"
)

var AllStatuses = []VisitStatus{
	StatusScheduled,
	StatusWaitingConfirmation,
	StatusCanceled,
	StatusDone,
}

func (s VisitStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusWaitingConfirmation, StatusCanceled, StatusDone:
		return true
	}
	return false
}

func (s VisitStatus) String() string {
	return string(s)
}

// Claimable reports whether a broker may assume a visit in this status.
func (s VisitStatus) Claimable() bool {
	return s == StatusScheduled || s == StatusWaitingConfirmation
}

type Visit struct {
	ID            string      `json:"id,omitempty" bson:"_id,omitempty"`
	VisitDateTime time.Time   `json:"visit_date_time" bson:"visit_date_time"`
	Status        VisitStatus `json:"status" bson:"status"`
	PropertyID    int64       `json:"property_id" bson:"property_id"`
	CustomerID    int64       `json:"customer_id" bson:"customer_id"`
	BrokerID      *int64      `json:"broker_id,omitempty" bson:"broker_id"`
	CreatedAt     time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" bson:"updated_at"`
}

func (v *Visit) HasBroker() bool {
	return v.BrokerID != nil
}

// NormalizeTime converts t to UTC with millisecond precision, the
// resolution BSON dates are stored with. Conflict matching compares
// instants exactly, so every stored time goes through here.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// CreateVisitInput is the privileged creation request: both parties are
// named explicitly and the status may be preset.
type CreateVisitInput struct {
	PropertyID    int64       `json:"property_id" validate:"required,gt=0"`
	CustomerID    int64       `json:"customer_id" validate:"required,gt=0"`
	BrokerID      int64       `json:"broker_id" validate:"required,gt=0"`
	VisitDateTime time.Time   `json:"visit_date_time" validate:"required"`
	Status        VisitStatus `json:"status,omitempty" validate:"omitempty,visit_status"`
}

// ScheduleVisitInput is the customer self-service request. The customer
// is taken from the caller identity, never from the body.
type ScheduleVisitInput struct {
	PropertyID    int64     `json:"property_id" validate:"required,gt=0"`
	VisitDateTime time.Time `json:"visit_date_time" validate:"required"`
}

type RescheduleInput struct {
	VisitDateTime time.Time `json:"visit_date_time" validate:"required"`
}

type StatusInput struct {
	Status VisitStatus `json:"status" validate:"required,visit_status"`
}

type VisitUpdate struct {
	VisitDateTime *time.Time   `json:"visit_date_time,omitempty" validate:"omitempty"`
	Status        *VisitStatus `json:"status,omitempty" validate:"omitempty,visit_status"`
	PropertyID    *int64       `json:"property_id,omitempty" validate:"omitempty,gt=0"`
	CustomerID    *int64       `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	BrokerID      *int64       `json:"broker_id,omitempty" validate:"omitempty,gt=0"`
}

func (u *VisitUpdate) Empty() bool {
	return u.VisitDateTime == nil && u.Status == nil && u.PropertyID == nil &&
		u.CustomerID == nil && u.BrokerID == nil
}

type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// VisitFilter narrows visit listings. Nil fields are not applied.
type VisitFilter struct {
	Status *VisitStatus
	Range  *DateRange
	Limit  int
	Offset int64
}
