package service

import (
	"log"
	"time"

	"ShareGate/config"
	"ShareGate/internal/event"
	"ShareGate/internal/repo"
	"ShareGate/internal/resource"
	"ShareGate/model"
	"ShareGate/utils"

	"github.com/google/uuid"
)

// Builder validates and assembles pending share links.
type Builder struct {
	cfg   *config.Config
	repo  repo.LinkRepository
	sinks event.Sinks
	now   func() time.Time
}

// NewBuilder wires the link builder.
func NewBuilder(cfg *config.Config, linkRepo repo.LinkRepository, sinks event.Sinks) *Builder {
	return &Builder{cfg: cfg, repo: linkRepo, sinks: sinks, now: time.Now}
}

// SetClock overrides the time source. Test hook.
func (b *Builder) SetClock(now func() time.Time) { b.now = now }

// Create validates the resource input eagerly and returns a pending link.
// Invalid descriptors fail here; nothing is persisted.
func (b *Builder) Create(input interface{}) (*PendingLink, error) {
	res, err := resource.Parse(input)
	if err != nil {
		return nil, err
	}
	return &PendingLink{
		builder: b,
		link: model.ShareLink{
			Resource: model.ResourceField{Resource: res},
		},
	}, nil
}

// PendingLink accumulates attributes before persistence. All builder
// methods are pure state mutation; no I/O happens until Generate.
type PendingLink struct {
	builder *Builder
	link    model.ShareLink
}

// ExpiresIn sets the expiry to now plus the given hours.
func (p *PendingLink) ExpiresIn(hours int) *PendingLink {
	t := p.builder.now().Add(time.Duration(hours) * time.Hour)
	p.link.ExpiresAt = &t
	return p
}

// MaxClicks caps the number of successful accesses.
func (p *PendingLink) MaxClicks(n int) *PendingLink {
	p.link.MaxClicks = &n
	return p
}

// WithPassword stores a one-way hash of the secret. An empty secret clears
// the gate.
func (p *PendingLink) WithPassword(secret string) *PendingLink {
	if secret == "" {
		p.link.PasswordHash = ""
		return p
	}
	p.link.PasswordHash = utils.GetPwd(secret)
	return p
}

// Metadata merges entries into the extension map.
func (p *PendingLink) Metadata(meta map[string]interface{}) *PendingLink {
	if p.link.Metadata == nil {
		p.link.Metadata = model.JSONMap{}
	}
	for k, v := range meta {
		p.link.Metadata[k] = v
	}
	return p
}

// BurnAfterReading marks the link single-use and sets the burn flag.
func (p *PendingLink) BurnAfterReading() *PendingLink {
	one := 1
	p.link.MaxClicks = &one
	if p.link.Metadata == nil {
		p.link.Metadata = model.JSONMap{}
	}
	p.link.Metadata[p.builder.cfg.BurnFlagKey] = true
	return p
}

// Token pins an explicit token. Tokens are never regenerated once set.
func (p *PendingLink) Token(token string) *PendingLink {
	p.link.Token = token
	return p
}

// CreatedBy records the creator reference.
func (p *PendingLink) CreatedBy(user string) *PendingLink {
	p.link.CreatedBy = user
	return p
}

// Generate persists the link and emits the Created event. A collision on
// the token unique index is retried once with a fresh token.
func (p *PendingLink) Generate() (*model.ShareLink, error) {
	generated := p.link.Token == ""
	if generated {
		p.link.Token = utils.GenerateToken()
	}
	p.link.ID = uuid.NewString()

	err := p.builder.repo.Create(&p.link)
	if err == repo.ErrDuplicateToken && generated {
		// Retry-once policy on token collision.
		p.link.Token = utils.GenerateToken()
		err = p.builder.repo.Create(&p.link)
	}
	if err != nil {
		return nil, err
	}

	link := p.link
	p.builder.sinks.Emit(event.KindCreated, &link)

	if p.builder.cfg.NotifyEmailEnabled {
		if to, ok := link.Metadata["notify_email"].(string); ok && to != "" {
			shareURL := "/" + p.builder.cfg.RoutePrefix + "/" + link.Token
			go func() {
				if err := SendShareCreatedMail(to, shareURL); err != nil {
					log.Printf("share notification mail failed: %v", err)
				}
			}()
		}
	}

	return &link, nil
}
