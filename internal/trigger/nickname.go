package trigger

import (
	"strings"

	"github.com/samber/mo"

	"pishocker/internal/transport"
)

// NicknameResolver returns an operator- or guild-assigned nickname for a user.
type NicknameResolver interface {
	Nickname(guildID, userID string) mo.Option[string]
}

// StaticNicknames resolves from a fixed id->name map.
type StaticNicknames map[string]string

func (m StaticNicknames) Nickname(_, userID string) mo.Option[string] {
	if n := strings.TrimSpace(m[userID]); n != "" {
		return mo.Some(n)
	}
	return mo.None[string]()
}

// MemberNicknames resolves guild nicknames from the adapter's state cache.
type MemberNicknames struct {
	Lookup transport.MemberLookup
}

func (m MemberNicknames) Nickname(guildID, userID string) mo.Option[string] {
	if m.Lookup == nil {
		return mo.None[string]()
	}
	if n, ok := m.Lookup.MemberNickname(guildID, userID); ok && n != "" {
		return mo.Some(n)
	}
	return mo.None[string]()
}

// Chain asks each resolver in order; the first present value wins.
type Chain []NicknameResolver

func (c Chain) Nickname(guildID, userID string) mo.Option[string] {
	for _, r := range c {
		if r == nil {
			continue
		}
		if n := r.Nickname(guildID, userID); n.IsPresent() {
			return n
		}
	}
	return mo.None[string]()
}
