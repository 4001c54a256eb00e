package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ShareGate/config"
	"ShareGate/internal/event"
	"ShareGate/internal/limiter"
	"ShareGate/internal/repo"
	"ShareGate/internal/resource"
	"ShareGate/model"
	"ShareGate/utils"

	"github.com/google/uuid"
)

// recordSink captures emitted events for assertions.
type recordSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recordSink) Notify(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordSink) count(kind event.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type testEnv struct {
	cfg       *config.Config
	repo      *repo.MemoryLinkRepository
	counters  *limiter.MemoryCounterStore
	sink      *recordSink
	signer    *Signer
	lifecycle *Lifecycle
	builder   *Builder
	pipeline  *Pipeline
	now       time.Time
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := &config.Config{
		RoutePrefix:     "share",
		BurnEnabled:     true,
		BurnStrategy:    "revoke",
		BurnFlagKey:     "burn_after_reading",
		SignedEnabled:   true,
		SignedKey:       "test-key",
		PwdLimitEnabled: true,
		PwdMax:          3,
		PwdDecay:        10 * time.Minute,
		RateMax:         60,
		RateDecay:       time.Minute,
		IPFilterEnabled: true,
	}
	if mutate != nil {
		mutate(cfg)
	}
	env := &testEnv{
		cfg:      cfg,
		repo:     repo.NewMemoryLinkRepository(),
		counters: limiter.NewMemoryCounterStore(),
		sink:     &recordSink{},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	sinks := event.Sinks{env.sink}
	env.signer = NewSigner(cfg.SignedKey, cfg.SignedTTL)
	env.lifecycle = NewLifecycle(env.repo, sinks)
	env.builder = NewBuilder(cfg, env.repo, sinks)
	env.pipeline = NewPipeline(cfg, env.repo, env.counters, env.signer, env.lifecycle, sinks)
	clock := func() time.Time { return env.now }
	env.pipeline.SetClock(clock)
	env.lifecycle.SetClock(clock)
	env.builder.SetClock(clock)
	env.counters.SetClock(clock)
	return env
}

func (e *testEnv) seed(t *testing.T, mutate func(*model.ShareLink)) *model.ShareLink {
	t.Helper()
	link := &model.ShareLink{
		ID:       uuid.NewString(),
		Token:    "tok-" + uuid.NewString(),
		Resource: model.ResourceField{Resource: resource.LocalFile{Path: "/tmp/missing.bin"}},
	}
	if mutate != nil {
		mutate(link)
	}
	if err := e.repo.Create(link); err != nil {
		t.Fatalf("seed link failed: %v", err)
	}
	return link
}

func (e *testEnv) access(t *testing.T, req AccessRequest) (*model.ShareLink, *Denial) {
	t.Helper()
	if req.ClientIP == "" {
		req.ClientIP = "203.0.113.9"
	}
	link, denial, err := e.pipeline.Authorize(context.Background(), req)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	return link, denial
}

func mustDeny(t *testing.T, denial *Denial, status int, code string) {
	t.Helper()
	if denial == nil {
		t.Fatalf("expected denial %d %s, got success", status, code)
	}
	if denial.Status != status || denial.Code != code {
		t.Fatalf("expected denial %d %s, got %d %s", status, code, denial.Status, denial.Code)
	}
}

func TestAccessUnknownToken(t *testing.T) {
	env := newTestEnv(t, nil)
	_, denial := env.access(t, AccessRequest{Token: "no-such-token"})
	mustDeny(t, denial, 410, "sharelink.invalid")
}

func TestAccessRevoked(t *testing.T) {
	env := newTestEnv(t, nil)
	link := env.seed(t, func(l *model.ShareLink) {
		revoked := env.now.Add(-time.Hour)
		l.RevokedAt = &revoked
	})
	_, denial := env.access(t, AccessRequest{Token: link.Token})
	mustDeny(t, denial, 410, "sharelink.invalid")
	if env.sink.count(event.KindExpired) != 0 {
		t.Fatal("revoked link must not emit an expired event")
	}
}

func TestAccessExpired(t *testing.T) {
	env := newTestEnv(t, nil)
	link := env.seed(t, func(l *model.ShareLink) {
		past := env.now.Add(-time.Minute)
		l.ExpiresAt = &past
	})
	_, denial := env.access(t, AccessRequest{Token: link.Token})
	mustDeny(t, denial, 410, "sharelink.invalid")
	if got := env.sink.count(event.KindExpired); got != 1 {
		t.Fatalf("expected exactly one expired event, got %d", got)
	}
}

// A link both revoked and past its expiry fails at the revoked check and
// never emits the expired event.
func TestRevokedWinsOverExpired(t *testing.T) {
	env := newTestEnv(t, nil)
	link := env.seed(t, func(l *model.ShareLink) {
		past := env.now.Add(-time.Hour)
		l.ExpiresAt = &past
		l.RevokedAt = &past
	})
	_, denial := env.access(t, AccessRequest{Token: link.Token})
	mustDeny(t, denial, 410, "sharelink.invalid")
	if env.sink.count(event.KindExpired) != 0 {
		t.Fatal("revoked check must run before the expiry check")
	}
}

func TestClickLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	two := 2
	link := env.seed(t, func(l *model.ShareLink) { l.MaxClicks = &two })

	for i := 0; i < 2; i++ {
		got, denial := env.access(t, AccessRequest{Token: link.Token, ClientIP: "198.51.100.7"})
		if denial != nil {
			t.Fatalf("access %d denied: %+v", i+1, denial)
		}
		if got.ClickCount != i+1 {
			t.Fatalf("access %d: expected click count %d, got %d", i+1, i+1, got.ClickCount)
		}
		if got.FirstAccessAt == nil || got.LastAccessAt == nil {
			t.Fatalf("access %d: access timestamps not stamped", i+1)
		}
		if got.LastIP != "198.51.100.7" {
			t.Fatalf("access %d: last ip not recorded, got %q", i+1, got.LastIP)
		}
	}

	_, denial := env.access(t, AccessRequest{Token: link.Token})
	mustDeny(t, denial, 429, "sharelink.limit_reached")
}

func TestBurnFlagRevokes(t *testing.T) {
	env := newTestEnv(t, nil)
	link := env.seed(t, func(l *model.ShareLink) {
		l.Metadata = model.JSONMap{"burn_after_reading": true}
	})

	got, denial := env.access(t, AccessRequest{Token: link.Token})
	if denial != nil {
		t.Fatalf("first access denied: %+v", denial)
	}
	if got == nil {
		t.Fatal("first access must succeed and return the record")
	}
	if env.sink.count(event.KindRevoked) != 1 {
		t.Fatal("burn must emit exactly one revoked event")
	}

	stored, err := env.repo.FindByToken(link.Token)
	if err != nil {
		t.Fatalf("burned link must still exist under the revoke strategy: %v", err)
	}
	if !stored.IsRevoked() {
		t.Fatal("burned link must be revoked")
	}

	_, denial = env.access(t, AccessRequest{Token: link.Token})
	mustDeny(t, denial, 410, "sharelink.invalid")
}

func TestBurnDeleteStrategy(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.BurnStrategy = "delete" })
	link := env.seed(t, func(l *model.ShareLink) {
		l.Metadata = model.JSONMap{"burn_after_reading": true}
	})

	_, denial := env.access(t, AccessRequest{Token: link.Token})
	if denial != nil {
		t.Fatalf("first access denied: %+v", denial)
	}
	if _, err := env.repo.FindByToken(link.Token); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("delete strategy must remove the record, got %v", err)
	}
	_, denial = env.access(t, AccessRequest{Token: link.Token})
	mustDeny(t, denial, 410, "sharelink.invalid")
}

// Without the auto-burn option a plain single-use link is not burned; the
// second attempt fails at the click limit instead.
func TestSingleUseWithoutAutoBurn(t *testing.T) {
	env := newTestEnv(t, nil)
	one := 1
	link := env.seed(t, func(l *model.ShareLink) { l.MaxClicks = &one })

	_, denial := env.access(t, AccessRequest{Token: link.Token})
	if denial != nil {
		t.Fatalf("first access denied: %+v", denial)
	}
	_, denial = env.access(t, AccessRequest{Token: link.Token})
	mustDeny(t, denial, 429, "sharelink.limit_reached")
	if env.sink.count(event.KindRevoked) != 0 {
		t.Fatal("link must not be revoked without the auto-burn option")
	}
}

func TestSingleUseWithAutoBurn(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.BurnAutoMaxClicks = true })
	one := 1
	link := env.seed(t, func(l *model.ShareLink) { l.MaxClicks = &one })

	_, denial := env.access(t, AccessRequest{Token: link.Token})
	if denial != nil {
		t.Fatalf("first access denied: %+v", denial)
	}
	_, denial = env.access(t, AccessRequest{Token: link.Token})
	mustDeny(t, denial, 410, "sharelink.invalid")
}

func TestPasswordGate(t *testing.T) {
	env := newTestEnv(t, nil)
	link := env.seed(t, func(l *model.ShareLink) {
		l.PasswordHash = utils.GetPwd("opensesame")
	})

	_, denial := env.access(t, AccessRequest{Token: link.Token})
	mustDeny(t, denial, 401, "password.invalid")

	_, denial = env.access(t, AccessRequest{Token: link.Token, Password: "wrong"})
	mustDeny(t, denial, 401, "password.invalid")

	got, denial := env.access(t, AccessRequest{Token: link.Token, Password: "opensesame"})
	if denial != nil {
		t.Fatalf("correct password denied: %+v", denial)
	}
	if got.ClickCount != 1 {
		t.Fatalf("expected one recorded click, got %d", got.ClickCount)
	}
}

// A successful attempt clears the failure counter, so a full window of
// failures is tolerated again afterwards.
func TestPasswordCounterResetsOnSuccess(t *testing.T) {
	env := newTestEnv(t, nil)
	link := env.seed(t, func(l *model.ShareLink) {
		l.PasswordHash = utils.GetPwd("opensesame")
	})

	for i := 0; i < 2; i++ {
		_, denial := env.access(t, AccessRequest{Token: link.Token, Password: "wrong"})
		mustDeny(t, denial, 401, "password.invalid")
	}
	if _, denial := env.access(t, AccessRequest{Token: link.Token, Password: "opensesame"}); denial != nil {
		t.Fatalf("correct password denied: %+v", denial)
	}
	// Counter starts over: three more failures before the throttle.
	for i := 0; i < 3; i++ {
		_, denial := env.access(t, AccessRequest{Token: link.Token, Password: "wrong"})
		mustDeny(t, denial, 401, "password.invalid")
	}
	_, denial := env.access(t, AccessRequest{Token: link.Token, Password: "wrong"})
	mustDeny(t, denial, 429, "password.throttled")
}

func TestPasswordThrottleWindowExpires(t *testing.T) {
	env := newTestEnv(t, nil)
	link := env.seed(t, func(l *model.ShareLink) {
		l.PasswordHash = utils.GetPwd("opensesame")
	})

	for i := 0; i < 3; i++ {
		_, denial := env.access(t, AccessRequest{Token: link.Token, Password: "wrong"})
		mustDeny(t, denial, 401, "password.invalid")
	}
	_, denial := env.access(t, AccessRequest{Token: link.Token, Password: "opensesame"})
	mustDeny(t, denial, 429, "password.throttled")

	env.now = env.now.Add(env.cfg.PwdDecay + time.Second)
	if _, denial := env.access(t, AccessRequest{Token: link.Token, Password: "opensesame"}); denial != nil {
		t.Fatalf("throttle must lapse after the decay window: %+v", denial)
	}
}

func TestIPDenyWinsOverAllow(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.IPAllow = []string{"203.0.113.9"}
		cfg.IPDeny = []string{"203.0.113.9"}
	})
	link := env.seed(t, nil)
	_, denial := env.access(t, AccessRequest{Token: link.Token, ClientIP: "203.0.113.9"})
	mustDeny(t, denial, 403, "sharelink.ip_denied")
}

func TestIPMetadataLists(t *testing.T) {
	env := newTestEnv(t, nil)
	link := env.seed(t, func(l *model.ShareLink) {
		l.Metadata = model.JSONMap{
			"ip_allow": []interface{}{"192.168.1.0/24"},
			"ip_deny":  []interface{}{"192.168.1.66"},
		}
	})

	if _, denial := env.access(t, AccessRequest{Token: link.Token, ClientIP: "192.168.1.5"}); denial != nil {
		t.Fatalf("allowed subnet denied: %+v", denial)
	}
	_, denial := env.access(t, AccessRequest{Token: link.Token, ClientIP: "192.168.1.66"})
	mustDeny(t, denial, 403, "sharelink.ip_denied")
	_, denial = env.access(t, AccessRequest{Token: link.Token, ClientIP: "172.16.0.1"})
	mustDeny(t, denial, 403, "sharelink.ip_denied")
}

func TestIPFilterDisabled(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.IPFilterEnabled = false
		cfg.IPDeny = []string{"203.0.113.9"}
	})
	link := env.seed(t, nil)
	if _, denial := env.access(t, AccessRequest{Token: link.Token, ClientIP: "203.0.113.9"}); denial != nil {
		t.Fatalf("disabled filter must not deny: %+v", denial)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.RateEnabled = true
		cfg.RateMax = 2
		cfg.RateDecay = time.Minute
	})
	link := env.seed(t, nil)

	for i := 0; i < 2; i++ {
		if _, denial := env.access(t, AccessRequest{Token: link.Token}); denial != nil {
			t.Fatalf("access %d denied: %+v", i+1, denial)
		}
	}
	_, denial := env.access(t, AccessRequest{Token: link.Token})
	mustDeny(t, denial, 429, "sharelink.rate_limited")

	// A different address has its own window.
	if _, denial := env.access(t, AccessRequest{Token: link.Token, ClientIP: "198.51.100.1"}); denial != nil {
		t.Fatalf("separate address denied: %+v", denial)
	}

	env.now = env.now.Add(2 * time.Minute)
	if _, denial := env.access(t, AccessRequest{Token: link.Token}); denial != nil {
		t.Fatalf("window must reset after the decay: %+v", denial)
	}
}

func TestSignatureRequired(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.SignedRequired = true })
	link := env.seed(t, nil)

	_, denial := env.access(t, AccessRequest{Token: link.Token})
	mustDeny(t, denial, 403, "sharelink.signature_required")

	_, denial = env.access(t, AccessRequest{Token: link.Token, Signature: "deadbeef"})
	mustDeny(t, denial, 403, "sharelink.signature_invalid")

	signature, expires := env.signer.Sign(link.Token, env.now)
	if _, denial := env.access(t, AccessRequest{Token: link.Token, Signature: signature, Expires: expires}); denial != nil {
		t.Fatalf("valid signature denied: %+v", denial)
	}
}

// Presenting a bad signature fails even when signatures are optional.
func TestOptionalSignatureStillVerified(t *testing.T) {
	env := newTestEnv(t, nil)
	link := env.seed(t, nil)

	if _, denial := env.access(t, AccessRequest{Token: link.Token}); denial != nil {
		t.Fatalf("unsigned access denied: %+v", denial)
	}
	_, denial := env.access(t, AccessRequest{Token: link.Token, Signature: "deadbeef"})
	mustDeny(t, denial, 403, "sharelink.signature_invalid")
}
