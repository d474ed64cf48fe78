package pishock

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"pishocker/internal/eventbus"
	"pishocker/internal/task/engine"
	logx "pishocker/pkg/logx"
)

//go:generate mockgen -source=dispatcher.go -destination=mocks/executor_mock.go -package=mocks

const taskName = "pishock.dispatch"

// Executor runs dispatch tasks asynchronously. *engine.Service implements it.
type Executor interface {
	Enqueue(t engine.Task) error
}

// DispatchEvent is published on the bus for every dispatch outcome.
type DispatchEvent struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Name   string `json:"name"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Dispatcher turns a DispatchRequest into one asynchronous POST.
type Dispatcher struct {
	client atomic.Pointer[Client]
	exec   Executor
	log    logx.Logger
	bus    eventbus.Bus
}

func NewDispatcher(client *Client, exec Executor, log logx.Logger, bus eventbus.Bus) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	if client == nil {
		client = NewClient(0)
	}
	d := &Dispatcher{exec: exec, log: log, bus: bus}
	d.client.Store(client)
	return d
}

// SetClient swaps the HTTP client used by dispatches issued from now on.
func (d *Dispatcher) SetClient(c *Client) {
	if c != nil {
		d.client.Store(c)
	}
}

// Dispatch schedules the command and returns immediately. It never fails from
// the caller's point of view: every problem ends up in the log as "PiShock Error:".
func (d *Dispatcher) Dispatch(req DispatchRequest) Ticket {
	t := Ticket{ID: uuid.NewString()}
	if req.Auth != nil {
		t.Method = req.Auth.Method()
	}
	log := d.log.With(logx.String("dispatch_id", t.ID), logx.String("method", t.Method))

	body, err := encodePayload(req)
	if err != nil {
		log.Error("PiShock Error:", logx.Err(err))
		d.publish(eventbus.DispatchFailed, t, req, 0, err)
		return t
	}
	client := d.client.Load()
	url := client.Endpoint(req.Auth)

	run := func(ctx context.Context) error {
		status, err := client.Post(ctx, url, body)
		if err != nil {
			log.Error("PiShock Error:", logx.Err(err))
			d.publish(eventbus.DispatchFailed, t, req, 0, err)
			return err
		}
		if status < 200 || status > 299 {
			log.Debug("pishock non-2xx response", logx.Int("status", status))
		}
		d.publish(eventbus.DispatchSent, t, req, status, nil)
		return nil
	}

	// Queued goes out before the task can report its outcome.
	log.Debug("dispatch queued", logx.String("op", req.Operation.Kind.String()), logx.String("name", req.DisplayName))
	d.publish(eventbus.DispatchQueued, t, req, 0, nil)

	if d.exec == nil {
		go func() { _ = run(context.Background()) }()
	} else if err := d.exec.Enqueue(engine.Task{ID: t.ID, Name: taskName, Run: run}); err != nil {
		log.Error("PiShock Error:", logx.Err(err))
		d.publish(eventbus.DispatchFailed, t, req, 0, err)
	}
	return t
}

func (d *Dispatcher) publish(typ string, t Ticket, req DispatchRequest, status int, err error) {
	ev := DispatchEvent{ID: t.ID, Method: t.Method, Name: req.DisplayName, Status: status}
	if err != nil {
		ev.Error = err.Error()
	}
	d.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
