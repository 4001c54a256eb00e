package service

import (
	"errors"
	"time"

	"ShareGate/internal/event"
	"ShareGate/internal/repo"
	"ShareGate/model"
)

// ErrInvalidHours rejects non-positive extension values.
var ErrInvalidHours = errors.New("hours must be a positive integer")

// PruneResult reports how many records each prune pass deleted.
type PruneResult struct {
	Expired int64 `json:"expired"`
	Revoked int64 `json:"revoked"`
}

// Lifecycle mutates a link's life-cycle state and emits the matching
// events.
type Lifecycle struct {
	repo  repo.LinkRepository
	sinks event.Sinks
	now   func() time.Time
}

// NewLifecycle wires the lifecycle manager.
func NewLifecycle(linkRepo repo.LinkRepository, sinks event.Sinks) *Lifecycle {
	return &Lifecycle{repo: linkRepo, sinks: sinks, now: time.Now}
}

// SetClock overrides the time source. Test hook.
func (l *Lifecycle) SetClock(now func() time.Time) { l.now = now }

// Revoke permanently invalidates a link. Revoking an already revoked link
// is a no-op and does not re-emit the event.
func (l *Lifecycle) Revoke(link *model.ShareLink) error {
	if link.IsRevoked() {
		return nil
	}
	t := l.now()
	link.RevokedAt = &t
	if err := l.repo.Save(link); err != nil {
		return err
	}
	l.sinks.Emit(event.KindRevoked, link)
	return nil
}

// Extend pushes the expiry out. A non-nil until sets the expiry
// absolutely; otherwise hours (default 1) are added to the current expiry,
// or to now when the link never expired.
func (l *Lifecycle) Extend(link *model.ShareLink, hours int, until *time.Time) error {
	if until != nil {
		t := *until
		link.ExpiresAt = &t
		return l.repo.Save(link)
	}
	if hours == 0 {
		hours = 1
	}
	if hours < 0 {
		return ErrInvalidHours
	}
	base := l.now()
	if link.ExpiresAt != nil {
		base = *link.ExpiresAt
	}
	t := base.Add(time.Duration(hours) * time.Hour)
	link.ExpiresAt = &t
	return l.repo.Save(link)
}

// Prune deletes expired links (emitting Expired for each) and revoked
// links, optionally only those revoked more than revokedDays ago.
func (l *Lifecycle) Prune(revokedDays int) (PruneResult, error) {
	now := l.now()

	expired, err := l.repo.FindExpired(now)
	if err != nil {
		return PruneResult{}, err
	}
	ids := make([]string, 0, len(expired))
	for i := range expired {
		l.sinks.Emit(event.KindExpired, &expired[i])
		ids = append(ids, expired[i].ID)
	}
	expiredCount, err := l.repo.DeleteByIDs(ids)
	if err != nil {
		return PruneResult{}, err
	}

	var cutoff *time.Time
	if revokedDays > 0 {
		t := now.AddDate(0, 0, -revokedDays)
		cutoff = &t
	}
	revokedCount, err := l.repo.DeleteRevoked(cutoff)
	if err != nil {
		return PruneResult{Expired: expiredCount}, err
	}

	return PruneResult{Expired: expiredCount, Revoked: revokedCount}, nil
}
