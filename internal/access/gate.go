// Package access answers capability questions about a subject in a
// workspace: owner, chat admin, explicit manager, moderator and role rank.
package access

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"jobdesk/internal/domain"
	"jobdesk/internal/transport"
	logx "jobdesk/pkg/logx"
)

const defaultMemberTTL = time.Minute

type Store interface {
	IsManager(ctx context.Context, workspace, user int64) (bool, error)
	GetSetting(ctx context.Context, workspace int64, key string) (string, bool, error)
	GetRole(ctx context.Context, workspace int64, name string) (domain.Role, bool, error)
	MemberRoles(ctx context.Context, workspace, user int64) ([]domain.Role, error)
}

type cached struct {
	m  transport.Member
	at time.Time
}

// Gate is safe for concurrent use. Chat membership lookups are cached for a
// short TTL and concurrent lookups of the same member share one call.
type Gate struct {
	store  Store
	lookup transport.MemberLookup
	log    logx.Logger
	ttl    time.Duration
	now    func() time.Time

	owners atomic.Pointer[map[int64]struct{}]

	sf    singleflight.Group
	mu    sync.Mutex
	cache map[[2]int64]cached
	swept time.Time // last prune of expired entries
}

func NewGate(store Store, lookup transport.MemberLookup, owners []int64, log logx.Logger) *Gate {
	if log.IsZero() {
		log = logx.Nop()
	}
	g := &Gate{
		store:  store,
		lookup: lookup,
		log:    log.With(logx.Component("access")),
		ttl:    defaultMemberTTL,
		now:    time.Now,
		cache:  map[[2]int64]cached{},
	}
	g.SetOwners(owners)
	return g
}

// SetOwners replaces the configured owner list.
func (g *Gate) SetOwners(ids []int64) {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id != 0 {
			m[id] = struct{}{}
		}
	}
	g.owners.Store(&m)
}

func (g *Gate) IsOwner(subject int64) bool {
	_, ok := (*g.owners.Load())[subject]
	return ok
}

// Member returns the subject's chat membership, cached.
func (g *Gate) Member(ctx context.Context, workspace, subject int64) (transport.Member, error) {
	if g.lookup == nil {
		return transport.Member{UserID: subject, Status: transport.StatusMember}, nil
	}
	key := [2]int64{workspace, subject}
	g.mu.Lock()
	c, ok := g.cache[key]
	g.mu.Unlock()
	if ok && g.now().Sub(c.at) < g.ttl {
		return c.m, nil
	}

	v, err, _ := g.sf.Do(fmt.Sprintf("%d:%d", workspace, subject), func() (any, error) {
		return g.lookup.Member(ctx, workspace, subject)
	})
	if err != nil {
		return transport.Member{}, domain.Infra(err)
	}
	m := v.(transport.Member)
	g.remember(key, m)
	return m, nil
}

// remember caches m and, at most once per TTL, drops every expired entry so
// the map only holds members seen recently.
func (g *Gate) remember(key [2]int64, m transport.Member) {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if now.Sub(g.swept) >= g.ttl {
		for k, c := range g.cache {
			if now.Sub(c.at) >= g.ttl {
				delete(g.cache, k)
			}
		}
		g.swept = now
	}
	g.cache[key] = cached{m: m, at: now}
}

// Forget drops a cached membership, e.g. after a promotion.
func (g *Gate) Forget(workspace, subject int64) {
	g.mu.Lock()
	delete(g.cache, [2]int64{workspace, subject})
	g.mu.Unlock()
}

// DisplayName resolves a mention name. Lookup failures yield "".
func (g *Gate) DisplayName(ctx context.Context, workspace, subject int64) string {
	m, err := g.Member(ctx, workspace, subject)
	if err != nil {
		g.log.Debug("member lookup failed", logx.Workspace(workspace), logx.Int64("user", subject), logx.Err(err))
		return ""
	}
	return m.DisplayName
}

// IsAdmin is true for owners and chat creators or administrators.
func (g *Gate) IsAdmin(ctx context.Context, workspace, subject int64) (bool, error) {
	if g.IsOwner(subject) {
		return true, nil
	}
	m, err := g.Member(ctx, workspace, subject)
	if err != nil {
		return false, err
	}
	return m.Status == transport.StatusCreator || m.Status == transport.StatusAdministrator, nil
}

// IsManagerOrAdmin adds explicit managers and holders of the manager role
// to IsAdmin.
func (g *Gate) IsManagerOrAdmin(ctx context.Context, workspace, subject int64) (bool, error) {
	if ok, err := g.IsAdmin(ctx, workspace, subject); err != nil || ok {
		return ok, err
	}
	ok, err := g.store.IsManager(ctx, workspace, subject)
	if err != nil || ok {
		return ok, err
	}
	return g.meetsSetting(ctx, workspace, subject, domain.SettingManagerRole)
}

// IsModerator is true for owners, the chat creator and admins allowed to
// delete messages.
func (g *Gate) IsModerator(ctx context.Context, workspace, subject int64) (bool, error) {
	if g.IsOwner(subject) {
		return true, nil
	}
	m, err := g.Member(ctx, workspace, subject)
	if err != nil {
		return false, err
	}
	switch m.Status {
	case transport.StatusCreator:
		return true, nil
	case transport.StatusAdministrator:
		return m.CanDeleteMessages, nil
	}
	return false, nil
}

// HasMinimumClaimRole is false when no minimum role is configured.
func (g *Gate) HasMinimumClaimRole(ctx context.Context, workspace, subject int64) (bool, error) {
	return g.meetsSetting(ctx, workspace, subject, domain.SettingMinClaimRole)
}

func (g *Gate) meetsSetting(ctx context.Context, workspace, subject int64, key string) (bool, error) {
	name, ok, err := g.store.GetSetting(ctx, workspace, key)
	if err != nil || !ok || strings.TrimSpace(name) == "" {
		return false, err
	}
	required, ok, err := g.store.GetRole(ctx, workspace, name)
	if err != nil {
		return false, err
	}
	if !ok {
		g.log.Warn("configured role missing", logx.Workspace(workspace), logx.String("setting", key), logx.String("role", name))
		return false, nil
	}
	held, err := g.store.MemberRoles(ctx, workspace, subject)
	if err != nil {
		return false, err
	}
	for _, r := range held {
		if r.Rank >= required.Rank {
			return true, nil
		}
	}
	return false, nil
}
