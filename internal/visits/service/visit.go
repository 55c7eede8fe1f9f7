package service

import (
	"brokerage/internal/directory"
	"brokerage/internal/visits/events"
	visitserrors "brokerage/internal/visits/errors"
	"brokerage/internal/visits/repository"
	"brokerage/internal/visits/validator"
	"brokerage/pkg/config"
	apperrors "brokerage/pkg/errors"
	"brokerage/pkg/model"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type VisitService interface {
	Create(ctx context.Context, input *model.CreateVisitInput) (*model.Visit, error)
	ScheduleVisit(ctx context.Context, customerID int64, input *model.ScheduleVisitInput) (*model.Visit, error)
	UpdateSchedule(ctx context.Context, id string, customerID int64, visitDateTime time.Time) (*model.Visit, error)
	AssumeVisit(ctx context.Context, id string, brokerID int64) (*model.Visit, error)
	CancelVisit(ctx context.Context, id string, customerID int64) (*model.Visit, error)
	Update(ctx context.Context, id string, update *model.VisitUpdate) (*model.Visit, error)
	UpdateStatus(ctx context.Context, id string, status model.VisitStatus) (*model.Visit, error)
	GetByID(ctx context.Context, id string) (*model.Visit, error)
	FindAll(ctx context.Context, filter model.VisitFilter) ([]*model.Visit, int64, error)
	FindByCustomer(ctx context.Context, customerID int64, filter model.VisitFilter) ([]*model.Visit, error)
	FindByProperty(ctx context.Context, propertyID int64, filter model.VisitFilter) ([]*model.Visit, error)
	Remove(ctx context.Context, id string) error
}

const (
	msgFutureRequired = "Visit date must be in the future (future date required)"
	msgSlotTaken      = "Property already has a scheduled visit at this time (time slot already booked)"
	msgAlreadyClaimed = "Visit already claimed by another broker"
	msgNotClaimable   = "Visit is not available to claim"
	msgNotOwner       = "Only the customer who owns the visit can do this"
)

type visitService struct {
	repo       repository.VisitRepository
	lockRepo   repository.VisitLockRepository
	properties directory.PropertyDirectory
	users      directory.UserDirectory
	validator  *validator.VisitValidator
	publisher  events.Publisher
	cfg        *config.Config
	now        func() time.Time
}

type Option func(*visitService)

// WithClock replaces time.Now as the reference for future-date checks.
func WithClock(now func() time.Time) Option {
	return func(s *visitService) {
		s.now = now
	}
}

func NewVisitService(
	repo repository.VisitRepository,
	lockRepo repository.VisitLockRepository,
	properties directory.PropertyDirectory,
	users directory.UserDirectory,
	validator *validator.VisitValidator,
	publisher events.Publisher,
	cfg *config.Config,
	opts ...Option,
) VisitService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &visitService{
		repo:       repo,
		lockRepo:   lockRepo,
		properties: properties,
		users:      users,
		validator:  validator,
		publisher:  publisher,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *visitService) Create(ctx context.Context, input *model.CreateVisitInput) (*model.Visit, error) {
	if err := s.validator.ValidateCreate(input); err != nil {
		return nil, s.validationFailed("Visit creation", err)
	}

	if err := s.requireProperty(ctx, input.PropertyID); err != nil {
		return nil, err
	}
	if _, err := s.requireUser(ctx, input.CustomerID, "Customer"); err != nil {
		return nil, err
	}
	if _, err := s.requireUser(ctx, input.BrokerID, "Broker"); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = model.StatusScheduled
	}
	brokerID := input.BrokerID
	visit := &model.Visit{
		VisitDateTime: model.NormalizeTime(input.VisitDateTime),
		Status:        status,
		PropertyID:    input.PropertyID,
		CustomerID:    input.CustomerID,
		BrokerID:      &brokerID,
	}

	if err := s.insert(ctx, visit); err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Visit created successfully",
		"id", visit.ID,
		"property_id", visit.PropertyID,
		"customer_id", visit.CustomerID,
		"broker_id", brokerID,
		"visit_date_time", visit.VisitDateTime,
		"status", visit.Status,
	)
	s.publish(ctx, events.VisitCreated, visit, nil)
	return visit, nil
}

func (s *visitService) ScheduleVisit(ctx context.Context, customerID int64, input *model.ScheduleVisitInput) (*model.Visit, error) {
	if err := s.validator.ValidateSchedule(input); err != nil {
		return nil, s.validationFailed("Visit scheduling", err)
	}

	if err := s.requireProperty(ctx, input.PropertyID); err != nil {
		return nil, err
	}
	if _, err := s.requireUser(ctx, customerID, "Customer"); err != nil {
		return nil, err
	}

	visit := &model.Visit{
		VisitDateTime: model.NormalizeTime(input.VisitDateTime),
		Status:        model.StatusWaitingConfirmation,
		PropertyID:    input.PropertyID,
		CustomerID:    customerID,
	}

	if err := s.insert(ctx, visit); err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Visit scheduled by customer",
		"id", visit.ID,
		"property_id", visit.PropertyID,
		"customer_id", customerID,
		"visit_date_time", visit.VisitDateTime,
	)
	s.publish(ctx, events.VisitScheduled, visit, nil)
	return visit, nil
}

func (s *visitService) UpdateSchedule(ctx context.Context, id string, customerID int64, visitDateTime time.Time) (*model.Visit, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Visit ID cannot be empty")
	}
	if err := s.validator.ValidateReschedule(&model.RescheduleInput{VisitDateTime: visitDateTime}); err != nil {
		return nil, s.validationFailed("Visit reschedule", err)
	}
	at := model.NormalizeTime(visitDateTime)

	var updated *model.Visit
	var previous time.Time
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		visit, err := s.findVisit(txCtx, id)
		if err != nil {
			return err
		}
		if visit.CustomerID != customerID {
			return apperrors.Forbidden(msgNotOwner)
		}
		if isTerminal(visit.Status) {
			return apperrors.Conflict(fmt.Sprintf("Visit is %s and cannot be rescheduled", visit.Status))
		}
		if err := s.requireFuture(at); err != nil {
			return err
		}
		if err := s.checkConflict(txCtx, visit.PropertyID, at, visit.ID); err != nil {
			return err
		}

		previous = visit.VisitDateTime
		visit.VisitDateTime = at
		if err := s.repo.Save(txCtx, visit); err != nil {
			return s.writeFailed("Failed to reschedule visit", err)
		}
		updated = visit
		return nil
	})
	if err != nil {
		s.logFailure("Failed to reschedule visit", id, err)
		return nil, err
	}

	s.cfg.Log.Info("Visit rescheduled successfully",
		"id", id,
		"customer_id", customerID,
		"from", previous,
		"to", at,
	)
	s.publish(ctx, events.VisitRescheduled, updated, nil)
	return updated, nil
}

func (s *visitService) AssumeVisit(ctx context.Context, id string, brokerID int64) (*model.Visit, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Visit ID cannot be empty")
	}

	visit, err := s.findVisit(ctx, id)
	if err != nil {
		return nil, err
	}

	broker, err := s.requireUser(ctx, brokerID, "Broker")
	if err != nil {
		return nil, err
	}
	if !broker.CanHandleVisits() {
		return nil, apperrors.Forbidden("Only brokers can assume visits")
	}

	if err := claimable(visit); err != nil {
		return nil, err
	}
	if visit.Status != model.StatusScheduled {
		if err := s.checkConflict(ctx, visit.PropertyID, visit.VisitDateTime, visit.ID); err != nil {
			return nil, err
		}
	}

	updated, previous, err := s.repo.AssignBroker(ctx, id, brokerID)
	if err != nil {
		if errors.Is(err, visitserrors.ErrClaimRejected) {
			// Lost the compare-and-swap; report what the winner left behind.
			current, findErr := s.findVisit(ctx, id)
			if findErr != nil {
				return nil, findErr
			}
			if claimErr := claimable(current); claimErr != nil {
				return nil, claimErr
			}
			return nil, apperrors.Conflict(msgNotClaimable)
		}
		s.logFailure("Failed to assume visit", id, err)
		return nil, s.writeFailed("Failed to assume visit", err)
	}

	transition := model.Guarded(previous, model.StatusScheduled)
	s.cfg.Log.Info("Visit assumed by broker",
		"id", id,
		"broker_id", brokerID,
		"from_status", transition.From,
		"to_status", transition.To,
	)
	s.publish(ctx, events.VisitClaimed, updated, &transition)
	return updated, nil
}

func (s *visitService) CancelVisit(ctx context.Context, id string, customerID int64) (*model.Visit, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Visit ID cannot be empty")
	}

	visit, err := s.findVisit(ctx, id)
	if err != nil {
		return nil, err
	}
	if visit.CustomerID != customerID {
		return nil, apperrors.Forbidden(msgNotOwner)
	}
	if err := cancelable(visit); err != nil {
		return nil, err
	}
	updated, previous, err := s.repo.Cancel(ctx, id)
	if err != nil {
		if errors.Is(err, visitserrors.ErrCancelRejected) {
			current, findErr := s.findVisit(ctx, id)
			if findErr != nil {
				return nil, findErr
			}
			if cancelErr := cancelable(current); cancelErr != nil {
				return nil, cancelErr
			}
		}
		s.logFailure("Failed to cancel visit", id, err)
		return nil, s.writeFailed("Failed to cancel visit", err)
	}

	transition := model.Guarded(previous, model.StatusCanceled)
	s.cfg.Log.Info("Visit canceled by customer",
		"id", id,
		"customer_id", customerID,
		"from_status", transition.From,
	)
	s.publish(ctx, events.VisitCanceled, updated, &transition)
	return updated, nil
}

func (s *visitService) Update(ctx context.Context, id string, update *model.VisitUpdate) (*model.Visit, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Visit ID cannot be empty")
	}
	if err := s.validator.ValidateUpdate(update); err != nil {
		return nil, s.validationFailed("Visit update", err)
	}

	if update.PropertyID != nil {
		if err := s.requireProperty(ctx, *update.PropertyID); err != nil {
			return nil, err
		}
	}
	if update.CustomerID != nil {
		if _, err := s.requireUser(ctx, *update.CustomerID, "Customer"); err != nil {
			return nil, err
		}
	}
	if update.BrokerID != nil {
		if _, err := s.requireUser(ctx, *update.BrokerID, "Broker"); err != nil {
			return nil, err
		}
	}

	var updated *model.Visit
	var override *model.Transition
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.findVisit(txCtx, id)
		if err != nil {
			return err
		}

		merged, err := mergeVisitUpdate(existing, update)
		if err != nil {
			return err
		}

		slotMoved := !merged.VisitDateTime.Equal(existing.VisitDateTime) || merged.PropertyID != existing.PropertyID
		if slotMoved {
			if err := s.requireFuture(merged.VisitDateTime); err != nil {
				return err
			}
		}
		if slotMoved || (merged.Status == model.StatusScheduled && existing.Status != model.StatusScheduled) {
			if err := s.checkConflict(txCtx, merged.PropertyID, merged.VisitDateTime, merged.ID); err != nil {
				return err
			}
		}

		override = nil
		if merged.Status != existing.Status {
			t := model.Override(existing.Status, merged.Status)
			override = &t
		}

		if err := s.repo.Save(txCtx, merged); err != nil {
			return s.writeFailed("Failed to update visit", err)
		}
		updated = merged
		return nil
	})
	if err != nil {
		s.logFailure("Failed to update visit", id, err)
		return nil, err
	}

	s.cfg.Log.Info("Visit updated successfully", "id", id)
	s.publish(ctx, events.VisitUpdated, updated, nil)
	if override != nil {
		s.recordOverride(ctx, updated, *override)
	}
	return updated, nil
}

func (s *visitService) UpdateStatus(ctx context.Context, id string, status model.VisitStatus) (*model.Visit, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Visit ID cannot be empty")
	}
	if err := s.validator.ValidateStatus(&model.StatusInput{Status: status}); err != nil {
		return nil, s.validationFailed("Visit status", err)
	}

	var updated *model.Visit
	var override *model.Transition
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		visit, err := s.findVisit(txCtx, id)
		if err != nil {
			return err
		}

		override = nil
		if visit.Status == status {
			updated = visit
			return nil
		}

		if status == model.StatusScheduled {
			if err := s.checkConflict(txCtx, visit.PropertyID, visit.VisitDateTime, visit.ID); err != nil {
				return err
			}
		}

		t := model.Override(visit.Status, status)
		visit.Status = status
		if err := s.repo.Save(txCtx, visit); err != nil {
			return s.writeFailed("Failed to update visit status", err)
		}
		updated = visit
		override = &t
		return nil
	})
	if err != nil {
		s.logFailure("Failed to update visit status", id, err)
		return nil, err
	}

	if override != nil {
		s.recordOverride(ctx, updated, *override)
	}
	return updated, nil
}

func (s *visitService) GetByID(ctx context.Context, id string) (*model.Visit, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Visit ID cannot be empty")
	}
	return s.findVisit(ctx, id)
}

func (s *visitService) FindAll(ctx context.Context, filter model.VisitFilter) ([]*model.Visit, int64, error) {
	var count int64
	var visits []*model.Visit
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountByFilter(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count visits", "error", err)
			errCount = apperrors.Internal("Failed to count visits", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		visits, err = s.repo.FindByFilter(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to list visits", "error", err)
			errFind = apperrors.Internal("Failed to retrieve visits", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return visits, count, nil
}

func (s *visitService) FindByCustomer(ctx context.Context, customerID int64, filter model.VisitFilter) ([]*model.Visit, error) {
	if _, err := s.requireUser(ctx, customerID, "Customer"); err != nil {
		return nil, err
	}

	visits, err := s.repo.FindByCustomer(ctx, customerID, filter)
	if err != nil {
		s.cfg.Log.Error("Failed to list customer visits", "customer_id", customerID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve visits", err)
	}
	return visits, nil
}

func (s *visitService) FindByProperty(ctx context.Context, propertyID int64, filter model.VisitFilter) ([]*model.Visit, error) {
	if err := s.requireProperty(ctx, propertyID); err != nil {
		return nil, err
	}

	visits, err := s.repo.FindByProperty(ctx, propertyID, filter)
	if err != nil {
		s.cfg.Log.Error("Failed to list property visits", "property_id", propertyID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve visits", err)
	}
	return visits, nil
}

func (s *visitService) Remove(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Visit ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.translate(err, id, "Failed to delete visit")
	}

	s.cfg.Log.Info("Visit deleted successfully", "id", id)
	s.publisher.Publish(ctx, events.Event{
		Type:       events.VisitDeleted,
		VisitID:    id,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

// --- Helpers ---

// insert persists a new visit under the slot lock. The pre-check gives the
// caller a readable conflict; the partial unique index settles races.
func (s *visitService) insert(ctx context.Context, visit *model.Visit) error {
	if err := s.requireFuture(visit.VisitDateTime); err != nil {
		return err
	}

	lockID, err := s.acquireSlotLock(ctx, visit.PropertyID, visit.VisitDateTime)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.lockRepo.Delete(context.WithoutCancel(ctx), lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release visit lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.checkConflict(txCtx, visit.PropertyID, visit.VisitDateTime, ""); err != nil {
			return err
		}
		visit.ID = ""
		if err := s.repo.Save(txCtx, visit); err != nil {
			return s.writeFailed("Failed to create visit", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("Failed to create visit", "", err)
		return err
	}
	return nil
}

func (s *visitService) acquireSlotLock(ctx context.Context, propertyID int64, at time.Time) (string, error) {
	lockID := fmt.Sprintf("visit_lock_%d_%d", propertyID, at.UnixMilli())

	lock := &model.VisitLock{
		ID:        lockID,
		ExpiresAt: s.now().Add(s.cfg.VisitLockTTL),
	}

	if _, err := s.lockRepo.Create(ctx, lock); err != nil {
		if errors.Is(err, repository.ErrLockHeld) {
			return "", apperrors.Conflict("This time slot is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire visit lock", err)
	}
	return lockID, nil
}

func (s *visitService) requireFuture(at time.Time) error {
	if !at.After(s.now()) {
		return apperrors.Conflict(msgFutureRequired)
	}
	return nil
}

// checkConflict looks for another SCHEDULED visit at exactly the same
// property and instant. There is no buffer between consecutive visits.
func (s *visitService) checkConflict(ctx context.Context, propertyID int64, at time.Time, excludeID string) error {
	existing, err := s.repo.FindConflicting(ctx, propertyID, at, excludeID)
	if err != nil {
		return s.translate(err, excludeID, "Failed to check conflicting visits")
	}
	if existing != nil {
		return apperrors.Conflict(msgSlotTaken).WithDetails(map[string]any{
			"conflicting_visit_id": existing.ID,
			"property_id":          propertyID,
			"visit_date_time":      at,
		})
	}
	return nil
}

func (s *visitService) findVisit(ctx context.Context, id string) (*model.Visit, error) {
	visit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id, "Failed to retrieve visit")
	}
	return visit, nil
}

func (s *visitService) requireProperty(ctx context.Context, id int64) error {
	if _, err := s.properties.FindProperty(ctx, id); err != nil {
		return s.directoryFailed(err, "Property", id)
	}
	return nil
}

func (s *visitService) requireUser(ctx context.Context, id int64, resource string) (*model.User, error) {
	user, err := s.users.FindUser(ctx, id)
	if err != nil {
		return nil, s.directoryFailed(err, resource, id)
	}
	return user, nil
}

func (s *visitService) directoryFailed(err error, resource string, id int64) error {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		return apperrors.NotFoundWithID(resource, id)
	case errors.Is(err, directory.ErrUnavailable):
		s.cfg.Log.Warn("Directory unavailable", "resource", resource, "id", id, "error", err)
		return apperrors.Unavailable("Directory", err)
	default:
		s.cfg.Log.Error("Directory lookup failed", "resource", resource, "id", id, "error", err)
		return apperrors.Internal(fmt.Sprintf("Failed to look up %s", resource), err)
	}
}

// translate maps repository sentinels onto AppErrors; anything else is
// wrapped as internal, keeping the cause for transaction retry labels.
func (s *visitService) translate(err error, id string, msg string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, visitserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Visit", id)
	case errors.Is(err, visitserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid visit ID format")
	case errors.Is(err, visitserrors.ErrDuplicateSlot):
		return apperrors.Conflict(msgSlotTaken)
	case errors.Is(err, visitserrors.ErrClaimRejected):
		return apperrors.Conflict(msgNotClaimable)
	case errors.Is(err, visitserrors.ErrCancelRejected):
		return apperrors.Conflict("Visit cannot be canceled")
	default:
		return apperrors.Internal(msg, err)
	}
}

func (s *visitService) writeFailed(msg string, err error) error {
	return s.translate(err, "", msg)
}

func (s *visitService) validationFailed(what string, err error) error {
	s.cfg.Log.Warn(what+" validation failed", "error", err)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(what+" validation failed", verrs.Fields())
	}
	return apperrors.Validation(what+" validation failed", map[string]any{"error": err.Error()})
}

func (s *visitService) logFailure(msg, id string, err error) {
	appErr := apperrors.AsAppError(err)
	if appErr.StatusCode() >= 500 {
		s.cfg.Log.Error(msg, "id", id, "error", err)
		return
	}
	s.cfg.Log.Warn(msg, "id", id, "code", appErr.Code, "reason", appErr.Message)
}

func (s *visitService) recordOverride(ctx context.Context, visit *model.Visit, t model.Transition) {
	s.cfg.Log.Warn("Visit status overridden",
		"id", visit.ID,
		"from_status", t.From,
		"to_status", t.To,
		"guarded_equivalent", model.CanTransition(t.From, t.To),
	)
	s.publish(ctx, events.VisitStatusOverridden, visit, &t)
}

func (s *visitService) publish(ctx context.Context, eventType events.Type, visit *model.Visit, t *model.Transition) {
	snapshot := *visit
	event := events.Event{
		Type:       eventType,
		VisitID:    visit.ID,
		Visit:      &snapshot,
		OccurredAt: s.now().UTC(),
	}
	if t != nil {
		event.FromStatus = t.From.String()
		event.ToStatus = t.To.String()
		event.Override = t.IsOverride()
	}
	s.publisher.Publish(ctx, event)
}

func claimable(visit *model.Visit) error {
	if visit.HasBroker() {
		return apperrors.Conflict(msgAlreadyClaimed)
	}
	if !visit.Status.Claimable() {
		return apperrors.Conflict(msgNotClaimable)
	}
	return nil
}

func cancelable(visit *model.Visit) error {
	if visit.Status == model.StatusCanceled {
		return apperrors.Conflict("Visit already canceled")
	}
	if !model.CanTransition(visit.Status, model.StatusCanceled) {
		return apperrors.Conflict(fmt.Sprintf("Visit is %s and cannot be canceled", visit.Status))
	}
	return nil
}

func isTerminal(status model.VisitStatus) bool {
	return status == model.StatusCanceled || status == model.StatusDone
}

// mergeVisitUpdate applies an administrative edit to a copy of existing.
// The broker is write-once: it may be set when absent but not replaced.
func mergeVisitUpdate(existing *model.Visit, update *model.VisitUpdate) (*model.Visit, error) {
	merged := *existing

	if update.VisitDateTime != nil {
		merged.VisitDateTime = model.NormalizeTime(*update.VisitDateTime)
	}
	if update.Status != nil {
		merged.Status = *update.Status
	}
	if update.PropertyID != nil {
		merged.PropertyID = *update.PropertyID
	}
	if update.CustomerID != nil {
		merged.CustomerID = *update.CustomerID
	}
	if update.BrokerID != nil {
		if existing.HasBroker() && *existing.BrokerID != *update.BrokerID {
			return nil, apperrors.Conflict(msgAlreadyClaimed)
		}
		brokerID := *update.BrokerID
		merged.BrokerID = &brokerID
	}

	return &merged, nil
}
