package service

import (
	"errors"
	"testing"
	"time"

	"ShareGate/internal/event"
	"ShareGate/internal/repo"
	"ShareGate/model"
)

func TestRevokeIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	link := env.seed(t, nil)

	if err := env.lifecycle.Revoke(link); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if link.RevokedAt == nil || !link.RevokedAt.Equal(env.now) {
		t.Fatalf("revocation timestamp not stamped: %v", link.RevokedAt)
	}
	if err := env.lifecycle.Revoke(link); err != nil {
		t.Fatalf("second Revoke failed: %v", err)
	}
	if got := env.sink.count(event.KindRevoked); got != 1 {
		t.Fatalf("expected exactly one revoked event, got %d", got)
	}
}

func TestExtendFromCurrentExpiry(t *testing.T) {
	env := newTestEnv(t, nil)
	expiry := env.now.Add(time.Hour)
	link := env.seed(t, func(l *model.ShareLink) { l.ExpiresAt = &expiry })

	if err := env.lifecycle.Extend(link, 2, nil); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	want := expiry.Add(2 * time.Hour)
	if link.ExpiresAt == nil || !link.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, link.ExpiresAt)
	}

	stored, err := env.repo.FindByToken(link.Token)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stored.ExpiresAt == nil || !stored.ExpiresAt.Equal(want) {
		t.Fatal("extension not persisted")
	}
}

// Extending a link that never expired anchors the expiry at the current
// time, and zero hours defaults to one.
func TestExtendNeverExpiring(t *testing.T) {
	env := newTestEnv(t, nil)
	link := env.seed(t, nil)

	if err := env.lifecycle.Extend(link, 0, nil); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	want := env.now.Add(time.Hour)
	if link.ExpiresAt == nil || !link.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, link.ExpiresAt)
	}
}

func TestExtendRejectsNegativeHours(t *testing.T) {
	env := newTestEnv(t, nil)
	link := env.seed(t, nil)
	if err := env.lifecycle.Extend(link, -3, nil); !errors.Is(err, ErrInvalidHours) {
		t.Fatalf("expected ErrInvalidHours, got %v", err)
	}
}

func TestExtendAbsolute(t *testing.T) {
	env := newTestEnv(t, nil)
	link := env.seed(t, nil)
	until := env.now.Add(72 * time.Hour)
	if err := env.lifecycle.Extend(link, 0, &until); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	if link.ExpiresAt == nil || !link.ExpiresAt.Equal(until) {
		t.Fatalf("expected absolute expiry %v, got %v", until, link.ExpiresAt)
	}
}

func TestPrune(t *testing.T) {
	env := newTestEnv(t, nil)
	past := env.now.Add(-time.Hour)
	env.seed(t, func(l *model.ShareLink) { l.ExpiresAt = &past })
	env.seed(t, func(l *model.ShareLink) { l.RevokedAt = &past })
	live := env.seed(t, nil)

	result, err := env.lifecycle.Prune(0)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if result.Expired != 1 || result.Revoked != 1 {
		t.Fatalf("expected {expired:1 revoked:1}, got %+v", result)
	}
	if got := env.sink.count(event.KindExpired); got != 1 {
		t.Fatalf("expected one expired event, got %d", got)
	}
	if _, err := env.repo.FindByToken(live.Token); err != nil {
		t.Fatalf("live link must survive the prune: %v", err)
	}
}

// With a day threshold, only links revoked before the cutoff are removed.
func TestPruneRevokedDays(t *testing.T) {
	env := newTestEnv(t, nil)
	old := env.now.AddDate(0, 0, -10)
	recent := env.now.Add(-time.Hour)
	stale := env.seed(t, func(l *model.ShareLink) { l.RevokedAt = &old })
	fresh := env.seed(t, func(l *model.ShareLink) { l.RevokedAt = &recent })

	result, err := env.lifecycle.Prune(7)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if result.Revoked != 1 {
		t.Fatalf("expected one revoked deletion, got %d", result.Revoked)
	}
	if _, err := env.repo.FindByToken(stale.Token); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("stale revoked link must be deleted, got %v", err)
	}
	if _, err := env.repo.FindByToken(fresh.Token); err != nil {
		t.Fatalf("recently revoked link must be kept: %v", err)
	}
}
