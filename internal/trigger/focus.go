package trigger

import (
	"strings"
	"sync/atomic"

	"github.com/samber/mo"

	"pishocker/internal/transport"
)

// FocusTracker answers "which channel is the owner looking at right now".
//
// A static channel wins. Otherwise the channel of the owner's latest message is used.
type FocusTracker struct {
	static atomic.Value // string
	owner  atomic.Value // string
	last   atomic.Value // string
}

func NewFocusTracker(ownerUserID, staticChannelID string) *FocusTracker {
	f := &FocusTracker{}
	f.last.Store("")
	f.Configure(ownerUserID, staticChannelID)
	return f
}

// Configure replaces owner and static channel. The observed channel is kept
// unless the owner changed.
func (f *FocusTracker) Configure(ownerUserID, staticChannelID string) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if prev, _ := f.owner.Load().(string); prev != ownerUserID {
		f.last.Store("")
	}
	f.owner.Store(ownerUserID)
	f.static.Store(strings.TrimSpace(staticChannelID))
}

// Observe records the channel of a message authored by the owner.
func (f *FocusTracker) Observe(ev transport.MessageEvent) {
	owner, _ := f.owner.Load().(string)
	if owner == "" || ev.Message.Author.ID != owner || ev.ChannelID == "" {
		return
	}
	f.last.Store(ev.ChannelID)
}

func (f *FocusTracker) Current() mo.Option[string] {
	if s, _ := f.static.Load().(string); s != "" {
		return mo.Some(s)
	}
	if l, _ := f.last.Load().(string); l != "" {
		return mo.Some(l)
	}
	return mo.None[string]()
}
