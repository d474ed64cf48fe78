package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"pishocker/internal/config"
	"pishocker/internal/eventbus"
	"pishocker/internal/pishock"
	"pishocker/internal/runtime/supervisor"
	"pishocker/internal/task/engine"
	"pishocker/internal/transport"
	"pishocker/internal/transport/discord"
	"pishocker/internal/trigger"
	logx "pishocker/pkg/logx"
)

// Gateway is the chat connection the app runs on. *discord.Adapter implements it.
type Gateway interface {
	transport.Adapter
	transport.Sender
	transport.MemberLookup
}

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	gw Gateway

	engine     *engine.Service
	dispatcher *pishock.Dispatcher
	focus      *trigger.FocusTracker
	listener   *trigger.Listener

	clientOpts []pishock.ClientOption
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetValidator(validateConfig)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "discord"))
	adapter, err := discord.New(discord.Config{Token: cfg.Discord.Token}, bootLog)
	if err != nil {
		return nil, err
	}
	return newApp(cfgm, cfg, adapter)
}

// newApp wires every service around an already loaded config.
func newApp(cfgm *config.ConfigManager, cfg *config.Config, gw Gateway, clientOpts ...pishock.ClientOption) (*App, error) {
	logs, log := logx.New(mapLogConfig(cfg), gw)
	bus := eventbus.New()

	ecfg, err := mapTaskEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	eng := engine.New(ecfg, log.With(logx.String("comp", "taskengine")), bus)

	client, err := buildClient(cfg, clientOpts...)
	if err != nil {
		return nil, err
	}
	disp := pishock.NewDispatcher(client, engineExecutor{eng}, log.With(logx.String("comp", "pishock")), bus)

	settings, err := buildSettings(cfg)
	if err != nil {
		return nil, err
	}
	focus := trigger.NewFocusTracker(cfg.Discord.OwnerUserID, cfg.Discord.FocusChannelID)
	filter := trigger.NewFilter(trigger.MemberNicknames{Lookup: gw})
	listener := trigger.NewListener(settings, filter, focus, disp, log.With(logx.String("comp", "trigger")))

	return &App{
		cfgm:       cfgm,
		log:        log,
		logs:       logs,
		bus:        bus,
		gw:         gw,
		engine:     eng,
		dispatcher: disp,
		focus:      focus,
		listener:   listener,
		clientOpts: clientOpts,
	}, nil
}

// engineExecutor runs dispatches on the task engine, or on a bare goroutine when
// task_engine.enabled is false.
type engineExecutor struct{ eng *engine.Service }

func (e engineExecutor) Enqueue(t engine.Task) error {
	err := e.eng.Enqueue(t)
	if errors.Is(err, engine.ErrDisabled) {
		go func() { _ = t.Run(context.Background()) }()
		return nil
	}
	return err
}

// Done is closed when the app run context ends (Stop or a fatal supervised error).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	// The engine has to accept tasks before the first message can arrive.
	a.engine.Start(a.sup.Context())

	if err := a.gw.Start(a.sup.Context(), a.listener.OnMessage); err != nil {
		a.sup.Cancel()
		return err
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				newCfg = latest(sub, newCfg)
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	// A broken watcher is restarted; it never takes the app down.
	a.sup.GoRestart("config.watch", a.cfgm.Watch, supervisor.WithRestartBackoff(250*time.Millisecond, 30*time.Second))

	notifySystemd(a.log, daemon.SdNotifyReady)
	a.log.Info("app started")
	return nil
}

// latest drains queued configs and keeps the newest.
func latest(sub <-chan *config.Config, cur *config.Config) *config.Config {
	for {
		select {
		case newer, ok := <-sub:
			if !ok {
				return cur
			}
			if newer != nil {
				cur = newer
			}
		default:
			return cur
		}
	}
}

// applyConfig pushes a validated config into the running services. A section
// that fails to map keeps its previous value.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	if newCfg == nil {
		return
	}
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.log.Debug("config change summary", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	if oldCfg != nil && oldCfg.Discord.Token != newCfg.Discord.Token {
		a.log.Warn("discord.token changed; restart required for changes to take effect")
	}

	a.logs.Apply(mapLogConfig(newCfg))

	if ecfg, err := mapTaskEngineConfig(newCfg); err != nil {
		a.log.Warn("task_engine config rejected; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(ctx, ecfg)
	}

	if client, err := buildClient(newCfg, a.clientOpts...); err != nil {
		a.log.Warn("pishock config rejected; keeping previous client", logx.Err(err))
	} else {
		a.dispatcher.SetClient(client)
	}

	if s, err := buildSettings(newCfg); err != nil {
		a.log.Warn("trigger config rejected; keeping previous", logx.Err(err))
	} else {
		a.listener.SetSettings(s)
	}
	a.focus.Configure(newCfg.Discord.OwnerUserID, newCfg.Discord.FocusChannelID)

	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Time: time.Now(), Data: sections})
	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	notifySystemd(a.log, daemon.SdNotifyStopping)

	a.sup.Cancel()

	// step runs one shutdown step bounded by max so a stuck component can't stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			a.log.Warn("stop step skipped; no time left", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	// Inbound first, then drain dispatches that are already queued.
	step("adapter", 2*time.Second, func(c context.Context) error { return a.gw.Stop(c) })
	step("taskengine", 5*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	snap := a.engine.Snapshot()
	counters := a.sup.Counters()
	a.log.Info("stopped",
		logx.Uint64("goroutines_started", counters.Started),
		logx.Uint64("goroutine_restarts", counters.Restarts),
		logx.Int64("goroutines_active", counters.Active),
		logx.Uint64("dispatch_accepted", snap.Accepted),
		logx.Uint64("dispatch_failed", snap.Failed),
		logx.Uint64("task_panics", snap.Panics),
		logx.Uint64("bus_dropped", eventbus.Dropped(a.bus)),
	)
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// notifySystemd is a no-op outside a systemd unit with Type=notify.
func notifySystemd(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}
