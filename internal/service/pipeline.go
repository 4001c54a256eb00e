package service

import (
	"errors"
	"math"
	"time"

	"ShareGate/config"
	"ShareGate/internal/event"
	"ShareGate/internal/limiter"
	"ShareGate/internal/repo"
	"ShareGate/model"
	"ShareGate/utils"

	"golang.org/x/net/context"
)

// AccessRequest carries the request context evaluated by the pipeline.
type AccessRequest struct {
	Token     string
	ClientIP  string
	Password  string
	Signature string
	Expires   string
}

// Pipeline runs the ordered validity checks that gate every access
// attempt. Checks short-circuit on the first failure; later checks assume
// earlier ones passed.
type Pipeline struct {
	cfg       *config.Config
	repo      repo.LinkRepository
	counters  limiter.CounterStore
	signer    *Signer
	lifecycle *Lifecycle
	sinks     event.Sinks
	now       func() time.Time

	globalAllow *utils.IPMatcher
	globalDeny  *utils.IPMatcher
}

// NewPipeline wires the validity pipeline.
func NewPipeline(
	cfg *config.Config,
	linkRepo repo.LinkRepository,
	counters limiter.CounterStore,
	signer *Signer,
	lifecycle *Lifecycle,
	sinks event.Sinks,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		repo:        linkRepo,
		counters:    counters,
		signer:      signer,
		lifecycle:   lifecycle,
		sinks:       sinks,
		now:         time.Now,
		globalAllow: utils.NewIPMatcher(cfg.IPAllow),
		globalDeny:  utils.NewIPMatcher(cfg.IPDeny),
	}
}

// SetClock overrides the time source. Test hook.
func (p *Pipeline) SetClock(now func() time.Time) { p.now = now }

// Authorize evaluates all checks for one access attempt. On success the
// click mutation and burn handling have already been applied and the
// returned record is ready for delivery. A non-nil Denial is the structured
// refusal; a non-nil error is a backend failure.
func (p *Pipeline) Authorize(ctx context.Context, req AccessRequest) (*model.ShareLink, *Denial, error) {
	now := p.now()

	link, err := p.repo.FindByToken(req.Token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, denyGone(), nil
		}
		return nil, nil, err
	}

	if link.IsRevoked() {
		return nil, denyGone(), nil
	}

	if link.IsExpired(now) {
		p.sinks.Emit(event.KindExpired, link)
		return nil, denyGone(), nil
	}

	if link.MaxClicks != nil && link.ClickCount >= *link.MaxClicks {
		return nil, denyLimitReached(), nil
	}

	if p.cfg.IPFilterEnabled {
		if d := p.checkIP(link, req.ClientIP); d != nil {
			return nil, d, nil
		}
	}

	if p.cfg.SignedEnabled {
		if d := p.checkSignature(req, now); d != nil {
			return nil, d, nil
		}
	}

	if p.cfg.RateEnabled {
		key := limiter.Key("rate", link.Token, req.ClientIP)
		tooMany, err := p.counters.TooMany(ctx, key, p.cfg.RateMax)
		if err != nil {
			return nil, nil, err
		}
		if tooMany {
			retry, _ := p.counters.AvailableIn(ctx, key)
			return nil, denyRateLimited(ceilSeconds(retry)), nil
		}
		if _, err := p.counters.Hit(ctx, key, p.cfg.RateDecay); err != nil {
			return nil, nil, err
		}
	}

	if link.PasswordHash != "" {
		if d, err := p.checkPassword(ctx, link, req); d != nil || err != nil {
			return nil, d, err
		}
	}

	ok, err := p.repo.IncrementClicks(link, now, req.ClientIP)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		// A concurrent request consumed the last click first.
		return nil, denyLimitReached(), nil
	}

	if err := p.maybeBurn(link); err != nil {
		return nil, nil, err
	}

	return link, nil, nil
}

// checkIP merges the global lists with the per-link metadata lists. The
// deny list wins over any allow entry.
func (p *Pipeline) checkIP(link *model.ShareLink, addr string) *Denial {
	deny := p.globalDeny
	allow := p.globalAllow
	if extra := link.Metadata.StringList("ip_deny"); len(extra) > 0 {
		deny = utils.NewIPMatcher(append(append([]string{}, p.cfg.IPDeny...), extra...))
	}
	if extra := link.Metadata.StringList("ip_allow"); len(extra) > 0 {
		allow = utils.NewIPMatcher(append(append([]string{}, p.cfg.IPAllow...), extra...))
	}
	if deny.Contains(addr) {
		return denyIP()
	}
	if !allow.IsEmpty() && !allow.Contains(addr) {
		return denyIP()
	}
	return nil
}

func (p *Pipeline) checkSignature(req AccessRequest, now time.Time) *Denial {
	if req.Signature != "" {
		if !p.signer.Verify(req.Token, req.Signature, req.Expires, now) {
			return denySignatureInvalid()
		}
		return nil
	}
	if p.cfg.SignedRequired {
		return denySignatureRequired()
	}
	return nil
}

func (p *Pipeline) checkPassword(ctx context.Context, link *model.ShareLink, req AccessRequest) (*Denial, error) {
	key := limiter.Key("pwd", link.Token, req.ClientIP)
	if p.cfg.PwdLimitEnabled {
		tooMany, err := p.counters.TooMany(ctx, key, p.cfg.PwdMax)
		if err != nil {
			return nil, err
		}
		if tooMany {
			retry, _ := p.counters.AvailableIn(ctx, key)
			return denyPasswordThrottled(ceilSeconds(retry)), nil
		}
	}
	if req.Password == "" || !utils.CheckPwd(req.Password, link.PasswordHash) {
		if p.cfg.PwdLimitEnabled {
			if _, err := p.counters.Hit(ctx, key, p.cfg.PwdDecay); err != nil {
				return nil, err
			}
		}
		return denyPasswordInvalid(), nil
	}
	if p.cfg.PwdLimitEnabled {
		if err := p.counters.Clear(ctx, key); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// maybeBurn applies the burn-after-reading strategy after a successful
// access. The current access still succeeds; subsequent attempts fail at
// the revoked or existence check.
func (p *Pipeline) maybeBurn(link *model.ShareLink) error {
	if !p.cfg.BurnEnabled {
		return nil
	}
	flagged := link.Metadata.Flag(p.cfg.BurnFlagKey)
	auto := p.cfg.BurnAutoMaxClicks && link.MaxClicks != nil && *link.MaxClicks == 1
	if !flagged && !auto {
		return nil
	}
	if link.ClickCount < 1 {
		return nil
	}
	if p.cfg.BurnStrategy == "delete" {
		return p.repo.Delete(link)
	}
	return p.lifecycle.Revoke(link)
}

func ceilSeconds(d time.Duration) int {
	sec := int(math.Ceil(d.Seconds()))
	if sec < 1 {
		sec = 1
	}
	return sec
}
