package trigger

import (
	"sync/atomic"

	"pishocker/internal/pishock"
	"pishocker/internal/transport"
	logx "pishocker/pkg/logx"
)

//go:generate mockgen -source=listener.go -destination=mocks/dispatcher_mock.go -package=mocks

// Dispatcher issues a PiShock command. *pishock.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(req pishock.DispatchRequest) pishock.Ticket
}

// Listener connects the message stream to the dispatcher.
type Listener struct {
	settings atomic.Pointer[Settings]
	filter   *Filter
	focus    *FocusTracker
	dispatch Dispatcher
	log      logx.Logger
}

func NewListener(s Settings, filter *Filter, focus *FocusTracker, d Dispatcher, log logx.Logger) *Listener {
	if filter == nil {
		filter = NewFilter(nil)
	}
	if focus == nil {
		focus = NewFocusTracker("", "")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &Listener{filter: filter, focus: focus, dispatch: d, log: log}
	l.SetSettings(s)
	return l
}

// SetSettings atomically replaces the snapshot used for later messages.
func (l *Listener) SetSettings(s Settings) {
	cp := s
	l.settings.Store(&cp)
}

func (l *Listener) Settings() Settings { return *l.settings.Load() }

// OnMessage runs synchronously on the gateway goroutine; dispatching is asynchronous.
func (l *Listener) OnMessage(ev transport.MessageEvent) {
	l.focus.Observe(ev)

	s := l.settings.Load()
	if !s.Enabled || l.dispatch == nil {
		return
	}
	req, ok := l.filter.Handle(ev, *s, l.focus.Current()).Get()
	if !ok {
		return
	}
	t := l.dispatch.Dispatch(req)
	l.log.Info("trigger matched",
		logx.String("author_id", ev.Message.Author.ID),
		logx.String("name", req.DisplayName),
		logx.String("channel_id", ev.ChannelID),
		logx.String("op", req.Operation.Kind.String()),
		logx.String("dispatch_id", t.ID),
	)
}
