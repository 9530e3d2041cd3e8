package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/FilipeAphrody/sentinel-identity/internal/domain"
)

var errStoreDown = errors.New("store unavailable")

// In-memory collaborators for exercising the session lifecycle without
// Postgres, Redis or a broker.

type memCredentialRepo struct {
	mu      sync.Mutex
	byEmail map[string]*domain.Credential
	byID    map[string]*domain.Credential
	failing bool
}

func newMemCredentialRepo() *memCredentialRepo {
	return &memCredentialRepo{
		byEmail: map[string]*domain.Credential{},
		byID:    map[string]*domain.Credential{},
	}
}

func (r *memCredentialRepo) GetByEmail(_ context.Context, email string) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, errStoreDown
	}
	cred, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	c := *cred
	return &c, nil
}

func (r *memCredentialRepo) GetByID(_ context.Context, userID string) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, errStoreDown
	}
	cred, ok := r.byID[userID]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	c := *cred
	return &c, nil
}

func (r *memCredentialRepo) Create(_ context.Context, cred *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errStoreDown
	}
	if _, ok := r.byEmail[cred.Email]; ok {
		return domain.ErrDuplicateEmail
	}
	cred.CreatedAt = time.Now()
	cred.UpdatedAt = cred.CreatedAt
	stored := *cred
	r.byEmail[cred.Email] = &stored
	r.byID[cred.UserID] = &stored
	return nil
}

func (r *memCredentialRepo) UpdatePasswordHash(_ context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errStoreDown
	}
	cred, ok := r.byID[userID]
	if !ok {
		return domain.ErrCredentialNotFound
	}
	cred.PasswordHash = passwordHash
	cred.UpdatedAt = time.Now()
	return nil
}

func (r *memCredentialRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errStoreDown
	}
	cred, ok := r.byID[userID]
	if !ok {
		return domain.ErrCredentialNotFound
	}
	delete(r.byID, userID)
	delete(r.byEmail, cred.Email)
	return nil
}

func (r *memCredentialRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type blacklistCall struct {
	token string
	ttl   time.Duration
}

type memRevocationStore struct {
	mu             sync.Mutex
	refresh        map[string]string
	blacklist      map[string]struct{}
	blacklistCalls []blacklistCall
	failing        bool
}

func newMemRevocationStore() *memRevocationStore {
	return &memRevocationStore{
		refresh:   map[string]string{},
		blacklist: map[string]struct{}{},
	}
}

func (s *memRevocationStore) SetRefreshValid(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	s.refresh[userID] = token
	return nil
}

func (s *memRevocationStore) IsRefreshValid(_ context.Context, userID, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return false, errStoreDown
	}
	return s.refresh[userID] == token && token != "", nil
}

func (s *memRevocationStore) InvalidateRefresh(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	delete(s.refresh, userID)
	return nil
}

func (s *memRevocationStore) BlacklistAccessToken(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	s.blacklistCalls = append(s.blacklistCalls, blacklistCall{token: token, ttl: ttl})
	s.blacklist[token] = struct{}{}
	return nil
}

func (s *memRevocationStore) IsBlacklisted(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return false, errStoreDown
	}
	_, ok := s.blacklist[token]
	return ok, nil
}

type publishedEvent struct {
	exchange   string
	routingKey string
	event      domain.IdentityEvent
}

type capturePublisher struct {
	mu       sync.Mutex
	events   []publishedEvent
	dropWith string // when set, every publish is dropped with this reason
}

func (p *capturePublisher) Publish(_ context.Context, exchange, routingKey string, event domain.IdentityEvent) domain.PublishResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dropWith != "" {
		return domain.Dropped(p.dropWith)
	}
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, event: event})
	return domain.Delivered()
}

func (p *capturePublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
