package usecases_test

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// memStore is an in-memory stand-in for the Postgres adapters. Every method
// holds the mutex for its whole body, which plays the part of a transaction.
type memStore struct {
	mu            sync.Mutex
	pins          map[string]*domain.Pin
	confirmations []domain.Confirmation
	users         map[string]*domain.User
	dropped       int
}

func newMemStore() *memStore {
	return &memStore{
		pins:  map[string]*domain.Pin{},
		users: map[string]*domain.User{},
	}
}

// --- PinRepository ---

func (m *memStore) Create(_ context.Context, pin *domain.Pin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pin.ID = uuid.NewString()
	pin.ConfirmationsCount = 0
	cp := *pin
	m.pins[pin.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*domain.Pin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pins[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := m.withOwner(*p)
	return &cp, nil
}

func (m *memStore) withOwner(p domain.Pin) domain.Pin {
	if p.OwnerID != nil {
		if u, ok := m.users[*p.OwnerID]; ok {
			p.OwnerUsername = u.Username
		}
	}
	return p
}

func (m *memStore) List(_ context.Context, q domain.PinQuery) ([]domain.Pin, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Pin
	for _, p := range m.pins {
		cp := m.withOwner(*p)
		if q.Matches(&cp) {
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	total := len(out)
	if q.Offset >= total {
		return []domain.Pin{}, total, nil
	}
	end := min(q.Offset+q.Limit, total)
	return out[q.Offset:end], total, nil
}

func (m *memStore) UpdateContent(_ context.Context, pin *domain.Pin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pins[pin.ID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Title, p.Description, p.Category = pin.Title, pin.Description, pin.Category
	p.Lat, p.Lng = pin.Lat, pin.Lng
	p.Tags, p.Rating, p.Images = pin.Tags, pin.Rating, pin.Images
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pins[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.pins, id)
	m.confirmations = slices.DeleteFunc(m.confirmations, func(c domain.Confirmation) bool {
		return c.PinID == id
	})
	return nil
}

func (m *memStore) SetStatus(_ context.Context, ids []string, status domain.PinStatus, isPublic bool) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	updated := []string{}
	for _, id := range ids {
		if p, ok := m.pins[id]; ok && !slices.Contains(updated, id) {
			p.Status, p.IsPublic = status, isPublic
			updated = append(updated, id)
		}
	}
	return updated, nil
}

// --- ConfirmationLedger ---

func (m *memStore) Confirm(_ context.Context, pinID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pins[pinID]
	if !ok || p.OwnedBy(userID) {
		return false, nil
	}
	for _, c := range m.confirmations {
		if c.PinID == pinID && c.UserID == userID {
			return false, nil
		}
	}
	m.confirmations = append(m.confirmations, domain.Confirmation{
		ID: uuid.NewString(), PinID: pinID, UserID: userID, CreatedAt: time.Now(),
	})
	m.apply(pinID, +1)
	return true, nil
}

func (m *memStore) Retract(_ context.Context, pinID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.confirmations)
	m.confirmations = slices.DeleteFunc(m.confirmations, func(c domain.Confirmation) bool {
		return c.PinID == pinID && c.UserID == userID
	})
	if len(m.confirmations) == before {
		return false, nil
	}
	m.apply(pinID, -1)
	return true, nil
}

// apply mirrors the guarded UPDATE: a missing pin or a negative result drops
// the write.
func (m *memStore) apply(pinID string, delta int) {
	p, ok := m.pins[pinID]
	if !ok || p.ConfirmationsCount+delta < 0 {
		m.dropped++
		return
	}
	p.ConfirmationsCount += delta
}

func (m *memStore) Confirmers(_ context.Context, pinIDs []string) (map[string][]domain.Confirmer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]domain.Confirmer, len(pinIDs))
	for _, c := range m.confirmations {
		if slices.Contains(pinIDs, c.PinID) {
			name := ""
			if u, ok := m.users[c.UserID]; ok {
				name = u.Username
			}
			out[c.PinID] = append(out[c.PinID], domain.Confirmer{UserID: c.UserID, Username: name})
		}
	}
	return out, nil
}

func (m *memStore) ListByPin(_ context.Context, pinID string) ([]domain.Confirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Confirmation{}
	for _, c := range m.confirmations {
		if c.PinID == pinID {
			if u, ok := m.users[c.UserID]; ok {
				c.Username = u.Username
			}
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ledgerCount(pinID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.confirmations {
		if c.PinID == pinID {
			n++
		}
	}
	return n
}

// corrupt overwrites a cached count to simulate drift.
func (m *memStore) corrupt(pinID string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pins[pinID].ConfirmationsCount = count
}

// --- CounterReconciler ---

func (m *memStore) Reconcile(_ context.Context, pinIDs []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var corrected int64
	for _, id := range pinIDs {
		p, ok := m.pins[id]
		if !ok {
			continue
		}
		n := 0
		for _, c := range m.confirmations {
			if c.PinID == id {
				n++
			}
		}
		if p.ConfirmationsCount != n {
			p.ConfirmationsCount = n
			corrected++
		}
	}
	return corrected, nil
}

func (m *memStore) ReconcileAll(ctx context.Context, batchSize int) (int64, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.pins))
	for id := range m.pins {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)

	var total int64
	for batch := range slices.Chunk(ids, batchSize) {
		n, err := m.Reconcile(ctx, batch)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// --- UserRepository (exposed through memUsers to avoid method clashes) ---

type memUsers struct{ *memStore }

func (u memUsers) Create(_ context.Context, user *domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, existing := range u.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return domain.ErrConflict
		}
	}
	user.ID = uuid.NewString()
	cp := *user
	u.users[user.ID] = &cp
	return nil
}

func (u memUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, existing := range u.users {
		if strings.EqualFold(existing.Username, username) {
			cp := *existing
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (u memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	existing, ok := u.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *existing
	return &cp, nil
}

func (u memUsers) SetStaff(_ context.Context, id string, staff bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	existing, ok := u.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	existing.IsStaff = staff
	return nil
}

func (u memUsers) Delete(_ context.Context, id string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.users[id]; !ok {
		return domain.ErrNotFound
	}
	kept := u.confirmations[:0]
	for _, c := range u.confirmations {
		if c.UserID == id {
			u.apply(c.PinID, -1)
			continue
		}
		kept = append(kept, c)
	}
	u.confirmations = kept
	for _, p := range u.pins {
		if p.OwnedBy(id) {
			p.OwnerID = nil
		}
	}
	delete(u.users, id)
	return nil
}

// addUser registers a user directly and returns its actor.
func (m *memStore) addUser(name string, staff bool) domain.Actor {
	u := &domain.User{Username: name, IsStaff: staff}
	if err := (memUsers{m}).Create(context.Background(), u); err != nil {
		panic(err)
	}
	return domain.Actor{UserID: u.ID, Username: name, Staff: staff}
}

// --- CacheService ---

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	gets    int
	hits    int
	failing bool
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

var errCacheMiss = errors.New("cache miss")

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failing {
		return nil, errors.New("cache down")
	}
	v, ok := c.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	if strings.HasPrefix(key, "pins:list:") {
		c.hits++
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("cache down")
	}
	c.data[key] = value
	return nil
}

func (c *memCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return 0, errors.New("cache down")
	}
	n, _ := strconv.ParseInt(string(c.data[key]), 10, 64)
	n++
	c.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// --- EventPublisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.PinEvent
	err    error
}

func (p *recordingPublisher) PublishPinEvent(_ context.Context, e domain.PinEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []domain.PinEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.PinEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// --- EventSubscriber ---

type chanSubscriber struct {
	handler func(ctx context.Context, event domain.PinEvent) error
}

func (s *chanSubscriber) SubscribeConfirmationEvents(_ context.Context, handler func(ctx context.Context, event domain.PinEvent) error) error {
	s.handler = handler
	return nil
}

func (s *chanSubscriber) deliver(event domain.PinEvent) error {
	return s.handler(context.Background(), event)
}
