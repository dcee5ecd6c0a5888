package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/npezzotti/go-tripplanner/internal/types"
)

// Names resolves author display names once per id and caches the result for
// the lifetime of a session.
type Names struct {
	profiles ProfileSource
	mu       sync.Mutex
	cache    map[string]string
}

func NewNames(profiles ProfileSource) *Names {
	return &Names{
		profiles: profiles,
		cache:    make(map[string]string),
	}
}

// Resolve returns the display name for userId, looking it up only until a
// lookup succeeds or reports the profile missing. Other failures return the
// id based name without caching it.
func (n *Names) Resolve(ctx context.Context, userId string) string {
	n.mu.Lock()
	if name, ok := n.cache[userId]; ok {
		n.mu.Unlock()
		return name
	}
	n.mu.Unlock()

	var profile types.Profile
	if n.profiles != nil {
		p, err := n.profiles.GetProfile(ctx, userId)
		switch {
		case err == nil:
			profile = p
		case !errors.Is(err, ErrNotFound):
			return DisplayName(userId, types.Profile{})
		}
	}
	name := DisplayName(userId, profile)

	n.mu.Lock()
	defer n.mu.Unlock()
	if cached, ok := n.cache[userId]; ok {
		return cached
	}
	n.cache[userId] = name
	return name
}

// ResolveAll resolves every unseen author of entries.
func (n *Names) ResolveAll(ctx context.Context, entries []ChatEntry) {
	for _, e := range entries {
		n.Resolve(ctx, e.UserId)
	}
}

// Cached returns the name for userId without a lookup.
func (n *Names) Cached(userId string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	name, ok := n.cache[userId]
	return name, ok
}

// DisplayName picks username, then the email local part, then the email,
// then "User" and the first eight characters of the id.
func DisplayName(userId string, p types.Profile) string {
	if u := strings.TrimSpace(p.Username); u != "" {
		return u
	}

	if email := strings.TrimSpace(p.Email); email != "" {
		if at := strings.Index(email, "@"); at > 0 {
			return email[:at]
		}
		return email
	}

	short := userId
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("User %s", short)
}
