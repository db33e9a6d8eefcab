package api

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/Navnit-07/kanban-realtime-websocket/domain"
)

type inboundEvent struct {
	// sess is nil when the event was applied on a peer instance and arrived
	// through the relay.
	sess *Session
	env  Envelope
}

// Hub is the session registry and broadcast coordinator. A single loop
// goroutine consumes connects, disconnects, and inbound events in arrival
// order, so no two mutations ever interleave and every session observes the
// same global operation order.
type Hub struct {
	engine         *domain.Engine
	store          *domain.Store
	logger         *log.Logger
	maxMessageSize int64

	register   chan *Session
	unregister chan *Session
	inbound    chan inboundEvent
	sessions   map[*Session]struct{}

	// publish forwards locally applied mutation results to peer instances.
	// Nil when the relay is not configured.
	publish func(event string, data []byte)
}

// NewHub returns a hub serving the given engine and store. Run must be
// started before sessions are registered.
func NewHub(engine *domain.Engine, store *domain.Store, logger *log.Logger, maxMessageSize int64) *Hub {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &Hub{
		engine:         engine,
		store:          store,
		logger:         logger,
		maxMessageSize: maxMessageSize,
		register:       make(chan *Session),
		unregister:     make(chan *Session),
		inbound:        make(chan inboundEvent, 256),
		sessions:       make(map[*Session]struct{}),
	}
}

// SetPublish installs the relay hook. Must be called before Run.
func (h *Hub) SetPublish(fn func(event string, data []byte)) {
	h.publish = fn
}

// Snapshot exposes the current board for read-only callers outside the loop.
func (h *Hub) Snapshot() []domain.Task {
	return h.store.Snapshot()
}

// ApplyRemote feeds a mutation result applied on a peer instance into the
// loop. Safe to call from the relay goroutine.
func (h *Hub) ApplyRemote(event string, data []byte) {
	h.inbound <- inboundEvent{env: Envelope{Event: event, Data: data}}
}

// Run processes events until ctx is canceled, then closes every session.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for s := range h.sessions {
				delete(h.sessions, s)
				close(s.send)
			}
			return
		case s := <-h.register:
			h.sessions[s] = struct{}{}
			h.logger.WithFields(log.Fields{"session": s.ID, "sessions": len(h.sessions)}).Info("session connected")
			h.sendSnapshot(s)
		case s := <-h.unregister:
			if _, ok := h.sessions[s]; ok {
				delete(h.sessions, s)
				close(s.send)
				h.logger.WithFields(log.Fields{"session": s.ID, "sessions": len(h.sessions)}).Info("session disconnected")
			}
		case ev := <-h.inbound:
			if ev.sess == nil {
				h.handleRemote(ev.env)
			} else {
				h.handle(ev.sess, ev.env)
			}
		}
	}
}

func (h *Hub) handle(s *Session, env Envelope) {
	switch env.Event {
	case EventTaskCreate:
		var req domain.TaskCreate
		if err := sonic.Unmarshal(env.Data, &req); err != nil {
			h.logger.Debugf("session %s: bad %s payload: %v", s.ID, env.Event, err)
			return
		}
		m := newMutationMetrics(h.logger, env.Event)
		start := time.Now()
		task := h.engine.Create(req)
		m.ObserveApply(time.Since(start))
		m.SetTaskID(task.ID)
		h.broadcastResult(m, EventTaskCreated, task)
	case EventTaskUpdate:
		var upd domain.TaskUpdate
		if err := sonic.Unmarshal(env.Data, &upd); err != nil {
			h.logger.Debugf("session %s: bad %s payload: %v", s.ID, env.Event, err)
			return
		}
		m := newMutationMetrics(h.logger, env.Event)
		m.SetTaskID(upd.ID)
		start := time.Now()
		task, err := h.engine.Update(upd)
		m.ObserveApply(time.Since(start))
		if err != nil {
			h.rejectMutation(m, s, env.Event, err)
			return
		}
		h.broadcastResult(m, EventTaskUpdated, task)
	case EventTaskMove:
		var req domain.TaskMove
		if err := sonic.Unmarshal(env.Data, &req); err != nil {
			h.logger.Debugf("session %s: bad %s payload: %v", s.ID, env.Event, err)
			return
		}
		m := newMutationMetrics(h.logger, env.Event)
		m.SetTaskID(req.TaskID)
		start := time.Now()
		task, err := h.engine.Move(req)
		m.ObserveApply(time.Since(start))
		if err != nil {
			h.rejectMutation(m, s, env.Event, err)
			return
		}
		h.broadcastResult(m, EventTaskMoved, task)
	case EventTaskDelete:
		var id string
		if err := sonic.Unmarshal(env.Data, &id); err != nil {
			h.logger.Debugf("session %s: bad %s payload: %v", s.ID, env.Event, err)
			return
		}
		m := newMutationMetrics(h.logger, env.Event)
		m.SetTaskID(id)
		start := time.Now()
		h.engine.Delete(id)
		m.ObserveApply(time.Since(start))
		h.broadcastResult(m, EventTaskDeleted, id)
	case EventSyncTasks:
		h.sendSnapshot(s)
	default:
		h.logger.Debugf("session %s sent unknown event %q", s.ID, env.Event)
	}
}

// handleRemote applies a mutation result that a peer instance already
// validated and applied. Full task payloads converge by upsert; deletions by
// remove. The result is rebroadcast to local sessions but never republished.
func (h *Hub) handleRemote(env Envelope) {
	switch env.Event {
	case EventTaskCreated, EventTaskUpdated, EventTaskMoved:
		var task domain.Task
		if err := sonic.Unmarshal(env.Data, &task); err != nil {
			h.logger.Warnf("relay: bad %s payload: %v", env.Event, err)
			return
		}
		if task.ID == "" {
			h.logger.Warnf("relay: %s payload without id", env.Event)
			return
		}
		h.store.Upsert(task)
	case EventTaskDeleted:
		var id string
		if err := sonic.Unmarshal(env.Data, &id); err != nil {
			h.logger.Warnf("relay: bad %s payload: %v", env.Event, err)
			return
		}
		h.store.Remove(id)
	default:
		h.logger.Debugf("relay: unknown event %q", env.Event)
		return
	}
	msg, err := sonic.Marshal(env)
	if err != nil {
		h.logger.Errorf("relay: encode %s: %v", env.Event, err)
		return
	}
	h.broadcast(msg)
}

// broadcastResult fans a mutation result out to every connected session,
// the originator included, and forwards it to the relay when configured.
func (h *Hub) broadcastResult(m *mutationMetrics, event string, payload any) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		m.SetErrorStage("encode")
		m.Log(err)
		h.logger.Errorf("encode %s: %v", event, err)
		return
	}
	msg, err := sonic.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		m.SetErrorStage("encode")
		m.Log(err)
		return
	}
	start := time.Now()
	n := h.broadcast(msg)
	m.ObserveFanout(time.Since(start))
	m.SetRecipients(n)
	m.Log(nil)
	if h.publish != nil {
		h.publish(event, data)
	}
}

// rejectMutation reports a failed update/move to the originator only. The
// fan-out is skipped so other sessions never see the event.
func (h *Hub) rejectMutation(m *mutationMetrics, s *Session, event string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		m.SetErrorStage("not_found")
	case errors.Is(err, domain.ErrInvalidStatus):
		m.SetErrorStage("invalid_status")
	default:
		m.SetErrorStage("apply")
	}
	m.Log(err)
	msg, encErr := encodeEvent(EventError, errorPayload{Event: event, Message: err.Error()})
	if encErr != nil {
		h.logger.Errorf("encode error event: %v", encErr)
		return
	}
	if !s.enqueue(msg) {
		h.closeSession(s)
	}
}

func (h *Hub) sendSnapshot(s *Session) {
	msg, err := encodeEvent(EventSyncTasks, h.engine.Snapshot())
	if err != nil {
		h.logger.Errorf("encode snapshot: %v", err)
		return
	}
	if !s.enqueue(msg) {
		h.closeSession(s)
	}
}

func (h *Hub) broadcast(msg []byte) int {
	n := 0
	for s := range h.sessions {
		if s.enqueue(msg) {
			n++
			continue
		}
		h.logger.Warnf("session %s cannot keep up, dropping it", s.ID)
		h.closeSession(s)
	}
	return n
}

func (h *Hub) closeSession(s *Session) {
	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	close(s.send)
}
