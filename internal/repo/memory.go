package repo

import (
	"sync"
	"time"

	"ShareGate/model"
)

// MemoryLinkRepository is a mutex-guarded in-memory LinkRepository. It backs
// single-process deployments and the test suite.
type MemoryLinkRepository struct {
	mu    sync.Mutex
	links map[string]*model.ShareLink // keyed by id
}

// NewMemoryLinkRepository builds an empty in-memory repository.
func NewMemoryLinkRepository() *MemoryLinkRepository {
	return &MemoryLinkRepository{links: make(map[string]*model.ShareLink)}
}

func (r *MemoryLinkRepository) Create(link *model.ShareLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.links {
		if existing.Token == link.Token {
			return ErrDuplicateToken
		}
	}
	clone := *link
	r.links[link.ID] = &clone
	return nil
}

func (r *MemoryLinkRepository) FindByToken(token string) (*model.ShareLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, link := range r.links {
		if link.Token == token {
			clone := *link
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryLinkRepository) Save(link *model.ShareLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *link
	r.links[link.ID] = &clone
	return nil
}

func (r *MemoryLinkRepository) Delete(link *model.ShareLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links, link.ID)
	return nil
}

func (r *MemoryLinkRepository) IncrementClicks(link *model.ShareLink, now time.Time, ip string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.links[link.ID]
	if !ok {
		return false, nil
	}
	if stored.RevokedAt != nil {
		return false, nil
	}
	if stored.MaxClicks != nil && stored.ClickCount >= *stored.MaxClicks {
		return false, nil
	}
	stored.ClickCount++
	if stored.FirstAccessAt == nil {
		t := now
		stored.FirstAccessAt = &t
	}
	t := now
	stored.LastAccessAt = &t
	stored.LastIP = ip

	link.ClickCount = stored.ClickCount
	link.FirstAccessAt = stored.FirstAccessAt
	link.LastAccessAt = stored.LastAccessAt
	link.LastIP = ip
	return true, nil
}

func (r *MemoryLinkRepository) FindExpired(now time.Time) ([]model.ShareLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ShareLink
	for _, link := range r.links {
		if link.ExpiresAt != nil && link.ExpiresAt.Before(now) {
			out = append(out, *link)
		}
	}
	return out, nil
}

func (r *MemoryLinkRepository) DeleteByIDs(ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, id := range ids {
		if _, ok := r.links[id]; ok {
			delete(r.links, id)
			count++
		}
	}
	return count, nil
}

func (r *MemoryLinkRepository) DeleteRevoked(cutoff *time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, link := range r.links {
		if link.RevokedAt == nil {
			continue
		}
		if cutoff != nil && !link.RevokedAt.Before(*cutoff) {
			continue
		}
		delete(r.links, id)
		count++
	}
	return count, nil
}
