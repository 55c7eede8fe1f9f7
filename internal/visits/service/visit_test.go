package service

import (
	"brokerage/internal/directory"
	"brokerage/internal/visits/events"
	"brokerage/internal/visits/validator"
	"brokerage/pkg/config"
	apperrors "brokerage/pkg/errors"
	"brokerage/pkg/logger"
	"brokerage/pkg/model"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow     = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	tomorrow0900 = time.Date(2030, 6, 2, 9, 0, 0, 0, time.UTC)
	tomorrow1400 = time.Date(2030, 6, 2, 14, 0, 0, 0, time.UTC)
	yesterday    = fixedNow.Add(-24 * time.Hour)
)

type testEnv struct {
	svc       VisitService
	store     *memoryVisitStore
	locks     *memoryLockStore
	dir       *fakeDirectory
	publisher *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	now := func() time.Time { return fixedNow }
	log := logger.Discard()
	cfg := &config.Config{Log: log, VisitLockTTL: 10 * time.Second}

	dir := &fakeDirectory{
		properties: map[int64]*model.Property{
			10: {ID: 10, Title: "Harbour loft"},
			11: {ID: 11, Title: "Garden flat"},
		},
		users: map[int64]*model.User{
			1: {ID: 1, Name: "Ana", Role: model.RoleCustomer},
			5: {ID: 5, Name: "Rui", Role: model.RoleCustomer},
			2: {ID: 2, Name: "Bea", Role: model.RoleBroker},
			3: {ID: 3, Name: "Caio", Role: model.RoleBroker},
			7: {ID: 7, Name: "Duda", Role: model.RoleBroker},
			8: {ID: 8, Name: "Eva", Role: model.RoleAdmin},
		},
	}

	env := &testEnv{
		store:     newMemoryVisitStore(now),
		locks:     newMemoryLockStore(),
		dir:       dir,
		publisher: &recordingPublisher{},
	}
	env.svc = NewVisitService(
		env.store,
		env.locks,
		dir,
		dir,
		validator.NewVisitValidator(log),
		env.publisher,
		cfg,
		WithClock(now),
	)
	return env
}

func (e *testEnv) create(t *testing.T, propertyID, customerID, brokerID int64, at time.Time) *model.Visit {
	t.Helper()
	visit, err := e.svc.Create(context.Background(), &model.CreateVisitInput{
		PropertyID:    propertyID,
		CustomerID:    customerID,
		BrokerID:      brokerID,
		VisitDateTime: at,
	})
	require.NoError(t, err)
	return visit
}

func (e *testEnv) schedule(t *testing.T, propertyID, customerID int64, at time.Time) *model.Visit {
	t.Helper()
	visit, err := e.svc.ScheduleVisit(context.Background(), customerID, &model.ScheduleVisitInput{
		PropertyID:    propertyID,
		VisitDateTime: at,
	})
	require.NoError(t, err)
	return visit
}

func requireCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.Equal(t, code, appErr.Code, "unexpected error: %v", err)
	return appErr
}

func TestCreate_DefaultsToScheduled(t *testing.T) {
	env := newTestEnv(t)

	visit := env.create(t, 10, 1, 2, tomorrow1400)

	assert.NotEmpty(t, visit.ID)
	assert.Equal(t, model.StatusScheduled, visit.Status)
	assert.Equal(t, int64(10), visit.PropertyID)
	assert.Equal(t, int64(1), visit.CustomerID)
	require.NotNil(t, visit.BrokerID)
	assert.Equal(t, int64(2), *visit.BrokerID)
	assert.True(t, visit.VisitDateTime.Equal(tomorrow1400))
	assert.Equal(t, []events.Type{events.VisitCreated}, env.publisher.types())
	assert.Zero(t, env.locks.held(), "slot lock is released after create")
}

func TestCreate_ExplicitStatus(t *testing.T) {
	env := newTestEnv(t)

	visit, err := env.svc.Create(context.Background(), &model.CreateVisitInput{
		PropertyID:    10,
		CustomerID:    1,
		BrokerID:      2,
		VisitDateTime: tomorrow1400,
		Status:        model.StatusWaitingConfirmation,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingConfirmation, visit.Status)
}

func TestCreate_RequiresFutureDate(t *testing.T) {
	env := newTestEnv(t)

	for _, at := range []time.Time{yesterday, fixedNow} {
		_, err := env.svc.Create(context.Background(), &model.CreateVisitInput{
			PropertyID: 10, CustomerID: 1, BrokerID: 2, VisitDateTime: at,
		})
		appErr := requireCode(t, err, apperrors.CodeConflict)
		assert.Contains(t, appErr.Message, "future date required")
	}
	assert.Empty(t, env.publisher.types())
}

func TestCreate_MissingReferences(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		input    model.CreateVisitInput
		resource string
	}{
		{"property", model.CreateVisitInput{PropertyID: 99, CustomerID: 1, BrokerID: 2, VisitDateTime: tomorrow1400}, "Property"},
		{"customer", model.CreateVisitInput{PropertyID: 10, CustomerID: 99, BrokerID: 2, VisitDateTime: tomorrow1400}, "Customer"},
		{"broker", model.CreateVisitInput{PropertyID: 10, CustomerID: 1, BrokerID: 99, VisitDateTime: tomorrow1400}, "Broker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Create(context.Background(), &tt.input)
			appErr := requireCode(t, err, apperrors.CodeNotFound)
			assert.Equal(t, tt.resource, appErr.Details["resource"])
		})
	}
}

func TestCreate_InvalidInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), &model.CreateVisitInput{CustomerID: 1, BrokerID: 2})
	appErr := requireCode(t, err, apperrors.CodeValidation)
	assert.Contains(t, appErr.Details, "PropertyID")
	assert.Contains(t, appErr.Details, "VisitDateTime")
}

func TestCreate_DoubleBooking(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, 10, 1, 2, tomorrow1400)

	_, err := env.svc.Create(context.Background(), &model.CreateVisitInput{
		PropertyID: 10, CustomerID: 5, BrokerID: 3, VisitDateTime: tomorrow1400,
	})
	requireCode(t, err, apperrors.CodeConflict)

	// Exact-instant matching: one second later, or another property, is free.
	env.create(t, 10, 5, 3, tomorrow1400.Add(time.Second))
	env.create(t, 11, 5, 3, tomorrow1400)

	// Self-service scheduling honours the same rule.
	_, err = env.svc.ScheduleVisit(context.Background(), 5, &model.ScheduleVisitInput{
		PropertyID: 10, VisitDateTime: tomorrow1400,
	})
	requireCode(t, err, apperrors.CodeConflict)
}

func TestCreate_CanceledVisitFreesSlot(t *testing.T) {
	env := newTestEnv(t)
	first := env.create(t, 10, 1, 2, tomorrow1400)

	_, err := env.svc.CancelVisit(context.Background(), first.ID, 1)
	require.NoError(t, err)

	env.create(t, 10, 5, 3, tomorrow1400)
}

func TestCreate_SlotLockHeld(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.locks.Create(context.Background(), &model.VisitLock{
		ID: fmt.Sprintf("visit_lock_%d_%d", 10, tomorrow1400.UnixMilli()),
	})
	require.NoError(t, err)

	_, err = env.svc.Create(context.Background(), &model.CreateVisitInput{
		PropertyID: 10, CustomerID: 1, BrokerID: 2, VisitDateTime: tomorrow1400,
	})
	appErr := requireCode(t, err, apperrors.CodeConflict)
	assert.Contains(t, appErr.Message, "being booked")
}

func TestScenario_SecondCreateAndForeignClaimConflict(t *testing.T) {
	env := newTestEnv(t)

	visit := env.create(t, 10, 1, 2, tomorrow1400)
	assert.Equal(t, model.StatusScheduled, visit.Status)

	_, err := env.svc.Create(context.Background(), &model.CreateVisitInput{
		PropertyID: 10, CustomerID: 5, BrokerID: 2, VisitDateTime: tomorrow1400,
	})
	requireCode(t, err, apperrors.CodeConflict)

	_, err = env.svc.AssumeVisit(context.Background(), visit.ID, 3)
	appErr := requireCode(t, err, apperrors.CodeConflict)
	assert.Contains(t, appErr.Message, "already claimed by another broker")
}

func TestScenario_ScheduleThenAssume(t *testing.T) {
	env := newTestEnv(t)

	visit := env.schedule(t, 10, 5, tomorrow0900)
	assert.Equal(t, model.StatusWaitingConfirmation, visit.Status)
	assert.Nil(t, visit.BrokerID)

	claimed, err := env.svc.AssumeVisit(context.Background(), visit.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, claimed.Status)
	require.NotNil(t, claimed.BrokerID)
	assert.Equal(t, int64(7), *claimed.BrokerID)

	event := env.publisher.last()
	assert.Equal(t, events.VisitClaimed, event.Type)
	assert.Equal(t, "WAITING_CONFIRMATION", event.FromStatus)
	assert.Equal(t, "SCHEDULED", event.ToStatus)
	assert.False(t, event.Override)
}

func TestScenario_RescheduleToPastLeavesVisitUntouched(t *testing.T) {
	env := newTestEnv(t)
	visit := env.schedule(t, 10, 5, tomorrow0900)

	_, err := env.svc.UpdateSchedule(context.Background(), visit.ID, 5, yesterday)
	appErr := requireCode(t, err, apperrors.CodeConflict)
	assert.Contains(t, appErr.Message, "future date required")

	stored := env.store.stored(visit.ID)
	assert.True(t, stored.VisitDateTime.Equal(tomorrow0900))
}

func TestUpdateSchedule(t *testing.T) {
	t.Run("moves the visit", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.create(t, 10, 1, 2, tomorrow1400)
		later := tomorrow1400.Add(2 * time.Hour)

		updated, err := env.svc.UpdateSchedule(context.Background(), visit.ID, 1, later)
		require.NoError(t, err)
		assert.True(t, updated.VisitDateTime.Equal(later))
		assert.True(t, env.store.stored(visit.ID).VisitDateTime.Equal(later))
		assert.Equal(t, events.VisitRescheduled, env.publisher.last().Type)
	})

	t.Run("own slot is not a conflict", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.create(t, 10, 1, 2, tomorrow1400)

		_, err := env.svc.UpdateSchedule(context.Background(), visit.ID, 1, tomorrow1400)
		require.NoError(t, err)
	})

	t.Run("occupied slot conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		env.create(t, 10, 1, 2, tomorrow1400)
		mine := env.schedule(t, 10, 5, tomorrow0900)

		_, err := env.svc.UpdateSchedule(context.Background(), mine.ID, 5, tomorrow1400)
		requireCode(t, err, apperrors.CodeConflict)
	})

	t.Run("only the owner", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.schedule(t, 10, 5, tomorrow0900)

		_, err := env.svc.UpdateSchedule(context.Background(), visit.ID, 1, tomorrow1400)
		requireCode(t, err, apperrors.CodeForbidden)
	})

	t.Run("unknown visit", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.UpdateSchedule(context.Background(), "65f000000000000000000000", 5, tomorrow1400)
		requireCode(t, err, apperrors.CodeNotFound)
	})

	t.Run("canceled visit", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.schedule(t, 10, 5, tomorrow0900)
		_, err := env.svc.CancelVisit(context.Background(), visit.ID, 5)
		require.NoError(t, err)

		_, err = env.svc.UpdateSchedule(context.Background(), visit.ID, 5, tomorrow1400)
		requireCode(t, err, apperrors.CodeConflict)
	})
}

func TestAssumeVisit(t *testing.T) {
	t.Run("second broker is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.schedule(t, 10, 5, tomorrow0900)

		_, err := env.svc.AssumeVisit(context.Background(), visit.ID, 2)
		require.NoError(t, err)

		_, err = env.svc.AssumeVisit(context.Background(), visit.ID, 3)
		appErr := requireCode(t, err, apperrors.CodeConflict)
		assert.Contains(t, appErr.Message, "already claimed")
		assert.Equal(t, int64(2), *env.store.stored(visit.ID).BrokerID)
	})

	t.Run("canceled visit is not claimable", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.schedule(t, 10, 5, tomorrow0900)
		_, err := env.svc.CancelVisit(context.Background(), visit.ID, 5)
		require.NoError(t, err)

		_, err = env.svc.AssumeVisit(context.Background(), visit.ID, 7)
		appErr := requireCode(t, err, apperrors.CodeConflict)
		assert.Contains(t, appErr.Message, "not available to claim")
	})

	t.Run("customers cannot claim", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.schedule(t, 10, 5, tomorrow0900)

		_, err := env.svc.AssumeVisit(context.Background(), visit.ID, 1)
		requireCode(t, err, apperrors.CodeForbidden)
	})

	t.Run("unknown broker", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.schedule(t, 10, 5, tomorrow0900)

		_, err := env.svc.AssumeVisit(context.Background(), visit.ID, 404)
		requireCode(t, err, apperrors.CodeNotFound)
	})

	t.Run("promotion onto an occupied slot", func(t *testing.T) {
		env := newTestEnv(t)
		waiting := env.schedule(t, 10, 5, tomorrow1400)
		env.create(t, 10, 1, 2, tomorrow1400)

		_, err := env.svc.AssumeVisit(context.Background(), waiting.ID, 7)
		requireCode(t, err, apperrors.CodeConflict)
		assert.Nil(t, env.store.stored(waiting.ID).BrokerID)
	})

	t.Run("malformed id", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.AssumeVisit(context.Background(), "nope", 7)
		requireCode(t, err, apperrors.CodeInvalidInput)
	})
}

func TestAssumeVisit_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	env := newTestEnv(t)
	visit := env.schedule(t, 10, 5, tomorrow0900)

	brokers := []int64{2, 3, 7, 8}
	var wg sync.WaitGroup
	results := make(chan error, len(brokers)*4)

	for i := 0; i < len(brokers)*4; i++ {
		wg.Add(1)
		go func(brokerID int64) {
			defer wg.Done()
			_, err := env.svc.AssumeVisit(context.Background(), visit.ID, brokerID)
			results <- err
		}(brokers[i%len(brokers)])
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, apperrors.IsConflict(err), "loser must see a conflict, got %v", err)
	}
	assert.Equal(t, 1, wins)
}

func TestAssumeVisit_ReportsStatusTheClaimMatched(t *testing.T) {
	env := newTestEnv(t)
	visit := env.schedule(t, 10, 5, tomorrow0900)
	require.Equal(t, model.StatusWaitingConfirmation, visit.Status)

	// An admin confirms the visit after the service has read it.
	env.store.beforeSwap = func(v *model.Visit) {
		v.Status = model.StatusScheduled
	}

	_, err := env.svc.AssumeVisit(context.Background(), visit.ID, 2)
	require.NoError(t, err)

	event := env.publisher.last()
	assert.Equal(t, events.VisitClaimed, event.Type)
	assert.Equal(t, "SCHEDULED", event.FromStatus)
	assert.Equal(t, "SCHEDULED", event.ToStatus)
}

func TestCancelVisit_ReportsStatusTheSwapMatched(t *testing.T) {
	env := newTestEnv(t)
	visit := env.schedule(t, 10, 5, tomorrow0900)

	env.store.beforeSwap = func(v *model.Visit) {
		v.Status = model.StatusScheduled
	}

	_, err := env.svc.CancelVisit(context.Background(), visit.ID, 5)
	require.NoError(t, err)

	event := env.publisher.last()
	assert.Equal(t, events.VisitCanceled, event.Type)
	assert.Equal(t, "SCHEDULED", event.FromStatus)
}

func TestCancelVisit(t *testing.T) {
	t.Run("non-owner is forbidden", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.create(t, 10, 1, 2, tomorrow1400)

		_, err := env.svc.CancelVisit(context.Background(), visit.ID, 5)
		requireCode(t, err, apperrors.CodeForbidden)
		assert.Equal(t, model.StatusScheduled, env.store.stored(visit.ID).Status)
	})

	t.Run("twice by owner", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.create(t, 10, 1, 2, tomorrow1400)

		canceled, err := env.svc.CancelVisit(context.Background(), visit.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCanceled, canceled.Status)

		_, err = env.svc.CancelVisit(context.Background(), visit.ID, 1)
		appErr := requireCode(t, err, apperrors.CodeConflict)
		assert.Contains(t, appErr.Message, "already canceled")
	})

	t.Run("done is terminal", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.create(t, 10, 1, 2, tomorrow1400)
		_, err := env.svc.UpdateStatus(context.Background(), visit.ID, model.StatusDone)
		require.NoError(t, err)

		_, err = env.svc.CancelVisit(context.Background(), visit.ID, 1)
		requireCode(t, err, apperrors.CodeConflict)
	})
}

func TestUpdateStatus_IsAuditedOverride(t *testing.T) {
	env := newTestEnv(t)
	visit := env.create(t, 10, 1, 2, tomorrow1400)
	_, err := env.svc.CancelVisit(context.Background(), visit.ID, 1)
	require.NoError(t, err)

	// CANCELED -> SCHEDULED is outside the state machine; the override allows it.
	updated, err := env.svc.UpdateStatus(context.Background(), visit.ID, model.StatusScheduled)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, updated.Status)

	event := env.publisher.last()
	assert.Equal(t, events.VisitStatusOverridden, event.Type)
	assert.True(t, event.Override)
	assert.Equal(t, "CANCELED", event.FromStatus)
	assert.Equal(t, "SCHEDULED", event.ToStatus)
}

func TestUpdateStatus_RespectsSlotUniqueness(t *testing.T) {
	env := newTestEnv(t)
	waiting := env.schedule(t, 10, 5, tomorrow1400)
	env.create(t, 10, 1, 2, tomorrow1400)

	_, err := env.svc.UpdateStatus(context.Background(), waiting.ID, model.StatusScheduled)
	requireCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, model.StatusWaitingConfirmation, env.store.stored(waiting.ID).Status)
}

func TestUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	visit := env.create(t, 10, 1, 2, tomorrow1400)

	_, err := env.svc.UpdateStatus(context.Background(), visit.ID, "ARCHIVED")
	requireCode(t, err, apperrors.CodeValidation)
}

func TestUpdate(t *testing.T) {
	t.Run("reschedule runs the same checks", func(t *testing.T) {
		env := newTestEnv(t)
		env.create(t, 10, 1, 2, tomorrow1400)
		visit := env.create(t, 10, 5, 3, tomorrow0900)

		_, err := env.svc.Update(context.Background(), visit.ID, &model.VisitUpdate{VisitDateTime: &tomorrow1400})
		requireCode(t, err, apperrors.CodeConflict)

		_, err = env.svc.Update(context.Background(), visit.ID, &model.VisitUpdate{VisitDateTime: &yesterday})
		requireCode(t, err, apperrors.CodeConflict)

		other := int64(11)
		moved, err := env.svc.Update(context.Background(), visit.ID, &model.VisitUpdate{
			VisitDateTime: &tomorrow1400,
			PropertyID:    &other,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(11), moved.PropertyID)
	})

	t.Run("unchanged slot skips future check", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.create(t, 10, 1, 2, tomorrow1400)

		customer := int64(5)
		updated, err := env.svc.Update(context.Background(), visit.ID, &model.VisitUpdate{CustomerID: &customer})
		require.NoError(t, err)
		assert.Equal(t, int64(5), updated.CustomerID)
	})

	t.Run("broker is write-once", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.create(t, 10, 1, 2, tomorrow1400)

		other := int64(3)
		_, err := env.svc.Update(context.Background(), visit.ID, &model.VisitUpdate{BrokerID: &other})
		requireCode(t, err, apperrors.CodeConflict)
	})

	t.Run("status change is an override", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.create(t, 10, 1, 2, tomorrow1400)

		done := model.StatusDone
		updated, err := env.svc.Update(context.Background(), visit.ID, &model.VisitUpdate{Status: &done})
		require.NoError(t, err)
		assert.Equal(t, model.StatusDone, updated.Status)
		assert.Equal(t, []events.Type{
			events.VisitCreated,
			events.VisitUpdated,
			events.VisitStatusOverridden,
		}, env.publisher.types())
	})

	t.Run("unknown reference", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.create(t, 10, 1, 2, tomorrow1400)

		missing := int64(404)
		_, err := env.svc.Update(context.Background(), visit.ID, &model.VisitUpdate{PropertyID: &missing})
		requireCode(t, err, apperrors.CodeNotFound)
	})
}

func TestFindAll_OrderedWithTotal(t *testing.T) {
	env := newTestEnv(t)
	late := env.create(t, 10, 1, 2, tomorrow1400)
	early := env.schedule(t, 11, 5, tomorrow0900)
	env.create(t, 11, 1, 2, tomorrow1400.Add(24*time.Hour))

	visits, total, err := env.svc.FindAll(context.Background(), model.VisitFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, visits, 2)
	assert.Equal(t, early.ID, visits[0].ID)
	assert.Equal(t, late.ID, visits[1].ID)

	waiting := model.StatusWaitingConfirmation
	visits, total, err = env.svc.FindAll(context.Background(), model.VisitFilter{Status: &waiting})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, early.ID, visits[0].ID)

	end := tomorrow1400
	visits, _, err = env.svc.FindAll(context.Background(), model.VisitFilter{
		Range: &model.DateRange{Start: &tomorrow0900, End: &end},
	})
	require.NoError(t, err)
	assert.Len(t, visits, 2, "range bounds are inclusive")
}

func TestFindAll_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.findErr = fmt.Errorf("connection reset")

	_, _, err := env.svc.FindAll(context.Background(), model.VisitFilter{})
	requireCode(t, err, apperrors.CodeInternal)
}

func TestScopedQueries(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, 10, 1, 2, tomorrow1400)
	env.schedule(t, 10, 5, tomorrow0900)
	env.schedule(t, 11, 5, tomorrow1400)

	byCustomer, err := env.svc.FindByCustomer(context.Background(), 5, model.VisitFilter{})
	require.NoError(t, err)
	assert.Len(t, byCustomer, 2)

	scheduled := model.StatusScheduled
	byProperty, err := env.svc.FindByProperty(context.Background(), 10, model.VisitFilter{Status: &scheduled})
	require.NoError(t, err)
	require.Len(t, byProperty, 1)
	assert.Equal(t, int64(1), byProperty[0].CustomerID)

	_, err = env.svc.FindByCustomer(context.Background(), 404, model.VisitFilter{})
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = env.svc.FindByProperty(context.Background(), 404, model.VisitFilter{})
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestFindByCustomer_ZeroLimitReturnsEverything(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 14; i++ {
		env.schedule(t, 10, 5, tomorrow0900.Add(time.Duration(i)*time.Hour))
	}

	visits, err := env.svc.FindByCustomer(context.Background(), 5, model.VisitFilter{})
	require.NoError(t, err)
	require.Len(t, visits, 14)
	assert.True(t, visits[0].VisitDateTime.Equal(tomorrow0900))

	visits, err = env.svc.FindByProperty(context.Background(), 10, model.VisitFilter{Limit: 4, Offset: 12})
	require.NoError(t, err)
	assert.Len(t, visits, 2)
}

func TestGetByID_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	created := env.create(t, 10, 1, 2, tomorrow1400)

	fetched, err := env.svc.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, fetched)
}

func TestRemove(t *testing.T) {
	env := newTestEnv(t)
	visit := env.create(t, 10, 1, 2, tomorrow1400)

	require.NoError(t, env.svc.Remove(context.Background(), visit.ID))
	assert.Equal(t, events.VisitDeleted, env.publisher.last().Type)

	_, err := env.svc.GetByID(context.Background(), visit.ID)
	requireCode(t, err, apperrors.CodeNotFound)

	err = env.svc.Remove(context.Background(), visit.ID)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestDirectoryUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.dir.err = fmt.Errorf("%w: circuit breaker is open", directory.ErrUnavailable)

	_, err := env.svc.ScheduleVisit(context.Background(), 5, &model.ScheduleVisitInput{
		PropertyID: 10, VisitDateTime: tomorrow0900,
	})
	appErr := requireCode(t, err, apperrors.CodeUnavailable)
	assert.Equal(t, 503, appErr.StatusCode())
}
