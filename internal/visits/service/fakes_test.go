package service

import (
	"brokerage/internal/directory"
	"brokerage/internal/visits/events"
	visitserrors "brokerage/internal/visits/errors"
	"brokerage/internal/visits/repository"
	mongotx "brokerage/pkg/db/mongo"
	"brokerage/pkg/model"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryVisitStore enforces the same write constraints as the Mongo
// collection: one SCHEDULED visit per (property, instant) and
// compare-and-swap claim and cancel.
type memoryVisitStore struct {
	mu     sync.Mutex
	visits map[string]*model.Visit
	now    func() time.Time

	findErr error
	// beforeSwap runs inside AssignBroker and Cancel ahead of the match,
	// standing in for a writer that lands between the service's read and
	// its compare-and-swap.
	beforeSwap func(v *model.Visit)
}

func newMemoryVisitStore(now func() time.Time) *memoryVisitStore {
	return &memoryVisitStore{visits: make(map[string]*model.Visit), now: now}
}

func clone(v *model.Visit) *model.Visit {
	c := *v
	if v.BrokerID != nil {
		id := *v.BrokerID
		c.BrokerID = &id
	}
	return &c
}

func (m *memoryVisitStore) get(id string) (*model.Visit, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, visitserrors.ErrInvalidID
	}
	v, ok := m.visits[id]
	if !ok {
		return nil, visitserrors.ErrNotFound
	}
	return v, nil
}

func (m *memoryVisitStore) FindByID(_ context.Context, id string) (*model.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return clone(v), nil
}

func (m *memoryVisitStore) FindConflicting(_ context.Context, propertyID int64, at time.Time, excludeID string) (*model.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v := m.occupant(propertyID, at, excludeID); v != nil {
		return clone(v), nil
	}
	return nil, nil
}

func (m *memoryVisitStore) occupant(propertyID int64, at time.Time, excludeID string) *model.Visit {
	at = model.NormalizeTime(at)
	for id, v := range m.visits {
		if id != excludeID && v.PropertyID == propertyID && v.Status == model.StatusScheduled && v.VisitDateTime.Equal(at) {
			return v
		}
	}
	return nil
}

func (m *memoryVisitStore) match(v *model.Visit, filter model.VisitFilter) bool {
	if filter.Status != nil && v.Status != *filter.Status {
		return false
	}
	if filter.Range != nil {
		if filter.Range.Start != nil && v.VisitDateTime.Before(model.NormalizeTime(*filter.Range.Start)) {
			return false
		}
		if filter.Range.End != nil && v.VisitDateTime.After(model.NormalizeTime(*filter.Range.End)) {
			return false
		}
	}
	return true
}

func (m *memoryVisitStore) list(scope func(*model.Visit) bool, filter model.VisitFilter) ([]*model.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}

	out := make([]*model.Visit, 0)
	for _, v := range m.visits {
		if scope(v) && m.match(v, filter) {
			out = append(out, clone(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VisitDateTime.Equal(out[j].VisitDateTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].VisitDateTime.Before(out[j].VisitDateTime)
	})

	if filter.Offset > 0 {
		if filter.Offset >= int64(len(out)) {
			return []*model.Visit{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryVisitStore) FindByFilter(_ context.Context, filter model.VisitFilter) ([]*model.Visit, error) {
	return m.list(func(*model.Visit) bool { return true }, filter)
}

func (m *memoryVisitStore) CountByFilter(_ context.Context, filter model.VisitFilter) (int64, error) {
	filter.Limit, filter.Offset = 0, 0
	visits, err := m.list(func(*model.Visit) bool { return true }, filter)
	return int64(len(visits)), err
}

func (m *memoryVisitStore) FindByCustomer(_ context.Context, customerID int64, filter model.VisitFilter) ([]*model.Visit, error) {
	return m.list(func(v *model.Visit) bool { return v.CustomerID == customerID }, filter)
}

func (m *memoryVisitStore) FindByProperty(_ context.Context, propertyID int64, filter model.VisitFilter) ([]*model.Visit, error) {
	return m.list(func(v *model.Visit) bool { return v.PropertyID == propertyID }, filter)
}

func (m *memoryVisitStore) Save(_ context.Context, visit *model.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	visit.VisitDateTime = model.NormalizeTime(visit.VisitDateTime)
	if visit.Status == model.StatusScheduled && m.occupant(visit.PropertyID, visit.VisitDateTime, visit.ID) != nil {
		return visitserrors.ErrDuplicateSlot
	}

	now := model.NormalizeTime(m.now())
	visit.UpdatedAt = now
	if visit.ID == "" {
		visit.ID = primitive.NewObjectID().Hex()
		visit.CreatedAt = now
	}
	m.visits[visit.ID] = clone(visit)
	return nil
}

func (m *memoryVisitStore) AssignBroker(_ context.Context, id string, brokerID int64) (*model.Visit, model.VisitStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, err := m.get(id)
	if err != nil {
		if errors.Is(err, visitserrors.ErrNotFound) {
			return nil, "", visitserrors.ErrClaimRejected
		}
		return nil, "", err
	}
	if m.beforeSwap != nil {
		m.beforeSwap(v)
	}
	if v.BrokerID != nil || !v.Status.Claimable() {
		return nil, "", visitserrors.ErrClaimRejected
	}
	if m.occupant(v.PropertyID, v.VisitDateTime, v.ID) != nil {
		return nil, "", visitserrors.ErrDuplicateSlot
	}

	previous := v.Status
	v.BrokerID = &brokerID
	v.Status = model.StatusScheduled
	v.UpdatedAt = model.NormalizeTime(m.now())
	return clone(v), previous, nil
}

func (m *memoryVisitStore) Cancel(_ context.Context, id string) (*model.Visit, model.VisitStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, err := m.get(id)
	if err != nil {
		if errors.Is(err, visitserrors.ErrNotFound) {
			return nil, "", visitserrors.ErrCancelRejected
		}
		return nil, "", err
	}
	if m.beforeSwap != nil {
		m.beforeSwap(v)
	}
	if v.Status != model.StatusScheduled && v.Status != model.StatusWaitingConfirmation {
		return nil, "", visitserrors.ErrCancelRejected
	}

	previous := v.Status
	v.Status = model.StatusCanceled
	v.UpdatedAt = model.NormalizeTime(m.now())
	return clone(v), previous, nil
}

func (m *memoryVisitStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.get(id); err != nil {
		return err
	}
	delete(m.visits, id)
	return nil
}

func (m *memoryVisitStore) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

func (m *memoryVisitStore) stored(id string) *model.Visit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.visits[id]; ok {
		return clone(v)
	}
	return nil
}

type memoryLockStore struct {
	mu    sync.Mutex
	locks map[string]*model.VisitLock
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{locks: make(map[string]*model.VisitLock)}
}

func (l *memoryLockStore) Create(_ context.Context, lock *model.VisitLock) (*model.VisitLock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.locks[lock.ID]; held {
		return nil, repository.ErrLockHeld
	}
	l.locks[lock.ID] = lock
	return lock, nil
}

func (l *memoryLockStore) Delete(_ context.Context, lockID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, lockID)
	return nil
}

func (l *memoryLockStore) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

type fakeDirectory struct {
	properties map[int64]*model.Property
	users      map[int64]*model.User
	err        error
}

func (d *fakeDirectory) FindProperty(_ context.Context, id int64) (*model.Property, error) {
	if d.err != nil {
		return nil, d.err
	}
	if p, ok := d.properties[id]; ok {
		return p, nil
	}
	return nil, directory.ErrNotFound
}

func (d *fakeDirectory) FindUser(_ context.Context, id int64) (*model.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return nil, directory.ErrNotFound
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *recordingPublisher) last() events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

var (
	_ repository.VisitRepository     = (*memoryVisitStore)(nil)
	_ repository.VisitLockRepository = (*memoryLockStore)(nil)
	_ directory.Directory            = (*fakeDirectory)(nil)
)
