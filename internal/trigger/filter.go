package trigger

import (
	"github.com/samber/mo"

	"pishocker/internal/pishock"
	"pishocker/internal/transport"
)

// Filter decides whether a message fires the trigger. It holds no mutable state.
type Filter struct {
	nick NicknameResolver
}

// NewFilter returns a filter that consults nick after the configured nicknames. nick may be nil.
func NewFilter(nick NicknameResolver) *Filter {
	return &Filter{nick: nick}
}

// Handle applies the rules in order and stops at the first rejection:
//  1. only default (type 0) messages
//  2. never the channel currently in focus
//  3. only authors on the watch-list
//
// A match carries the author's display name: nickname, then global name, then username.
func (f *Filter) Handle(ev transport.MessageEvent, s Settings, currentChannelID mo.Option[string]) mo.Option[pishock.DispatchRequest] {
	if ev.Message.Type != transport.MessageTypeDefault {
		return mo.None[pishock.DispatchRequest]()
	}
	if cur, ok := currentChannelID.Get(); ok && cur == ev.ChannelID {
		return mo.None[pishock.DispatchRequest]()
	}
	if !s.Users.Contains(ev.Message.Author.ID) {
		return mo.None[pishock.DispatchRequest]()
	}

	return mo.Some(pishock.DispatchRequest{
		DisplayName: f.displayName(ev, s),
		Operation:   s.Operation,
		Warning:     s.Warning,
		Auth:        s.Auth,
	})
}

func (f *Filter) displayName(ev transport.MessageEvent, s Settings) string {
	a := ev.Message.Author
	chain := Chain{StaticNicknames(s.Nicknames), f.nick}
	if n, ok := chain.Nickname(ev.GuildID, a.ID).Get(); ok {
		return n
	}
	if a.GlobalName != nil && *a.GlobalName != "" {
		return *a.GlobalName
	}
	return a.Username
}
