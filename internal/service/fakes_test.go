package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/notes-auth/internal/model"
	"github.com/iliyamo/notes-auth/internal/queue"
	"github.com/iliyamo/notes-auth/internal/repository"
)

type memUsers struct {
	mu      sync.Mutex
	byID    map[string]model.User
	byEmail map[string]string
	findErr error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]model.User{}, byEmail: map[string]string{}}
}

func (m *memUsers) Create(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return repository.ErrEmailExists
	}
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return model.User{}, false, m.findErr
	}
	id, ok := m.byEmail[email]
	if !ok {
		return model.User{}, false, nil
	}
	return m.byID[id], true, nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return model.User{}, false, m.findErr
	}
	u, ok := m.byID[id]
	return u, ok, nil
}

func (m *memUsers) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		delete(m.byEmail, u.Email)
		delete(m.byID, id)
	}
}

type tokenKey struct{ userID, hash string }

type memTokens struct {
	mu      sync.Mutex
	records map[tokenKey]model.RefreshToken
	saveErr error
}

func newMemTokens() *memTokens {
	return &memTokens{records: map[tokenKey]model.RefreshToken{}}
}

func (m *memTokens) Save(_ context.Context, rec model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[tokenKey{rec.UserID, rec.TokenHash}] = rec
	return nil
}

func (m *memTokens) Find(_ context.Context, userID, hash string) (model.RefreshToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[tokenKey{userID, hash}]
	return rec, ok, nil
}

func (m *memTokens) Delete(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, tokenKey{userID, hash})
	return nil
}

func (m *memTokens) Rotate(_ context.Context, userID, oldHash string, next model.RefreshToken) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := tokenKey{userID, oldHash}
	if _, ok := m.records[k]; !ok {
		return false, nil
	}
	delete(m.records, k)
	m.records[tokenKey{next.UserID, next.TokenHash}] = next
	return true, nil
}

func (m *memTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, rec := range m.records {
		if rec.Expired(now) {
			delete(m.records, k)
			n++
		}
	}
	return n, nil
}

func (m *memTokens) setExpiry(userID, hash string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := tokenKey{userID, hash}
	rec := m.records[k]
	rec.ExpiresAt = at
	m.records[k] = rec
}

func (m *memTokens) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.UserRegisteredEvent
	err    error
}

func (p *recordingPublisher) PublishUserRegistered(_ context.Context, e queue.UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

var errBoom = errors.New("boom")
