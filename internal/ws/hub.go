package ws

import (
	"encoding/json"
	"sync"

	"github.com/emandor/textconv/internal/telemetry"
	"github.com/gofiber/contrib/websocket"
)

type Action string

const (
	ActionJoin  Action = "join"
	ActionLeave Action = "leave"
)

const RoomBatch = "batch.room"

type Event string

const (
	EventBatchStarted   Event = "batch.event.started"
	EventBatchProgress  Event = "batch.event.progress"
	EventBatchCompleted Event = "batch.event.completed"
	EventBatchError     Event = "batch.event.error"
)

type PayloadEvent struct {
	Event   Event  `json:"event"`
	BatchID string `json:"batch_id"`
	Data    any    `json:"data,omitempty"`
}

type ClientMessage struct {
	Action Action `json:"action"`
	Room   string `json:"room"`
}

type ProgressPayload struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Label   string `json:"label"`
}

// conn is the subset of *websocket.Conn the hub writes to.
type conn interface {
	WriteJSON(v any) error
}

// Hub fans batch events out to the connections that joined the batch room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[conn]struct{}

	// gorilla-style conns allow one concurrent writer
	wmu sync.Mutex
}

func NewHub() *Hub {
	return &Hub{rooms: map[string]map[conn]struct{}{}}
}

func RoomFor(batchID string) string { return RoomBatch + "." + batchID }

// HandleWS serves one connection. A "batch" local set by the upgrade
// middleware joins that room straight away; clients can also send
// {"action":"join","room":"batch.room.<id>"}.
func (h *Hub) HandleWS(c *websocket.Conn) {
	tlog := telemetry.L().With().Str("module", "ws").Logger()
	tlog.Info().Msg("ws_connected")
	defer func() {
		h.drop(c)
		_ = c.Close()
	}()

	if id, ok := c.Locals("batch").(string); ok && id != "" {
		h.join(c, RoomFor(id))
	}

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			break
		}

		var cm ClientMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			continue
		}

		switch cm.Action {
		case ActionJoin:
			h.join(c, cm.Room)
		case ActionLeave:
			h.leave(c, cm.Room)
		}
	}
}

func (h *Hub) join(c conn, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = map[conn]struct{}{}
	}
	h.rooms[room][c] = struct{}{}
	h.mu.Unlock()
	log := telemetry.L()
	log.Debug().Str("room", room).Msg("ws_join")
}

func (h *Hub) leave(c conn, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	delete(h.rooms[room], c)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
	h.mu.Unlock()
	log := telemetry.L()
	log.Debug().Str("room", room).Msg("ws_leave")
}

func (h *Hub) drop(c conn) {
	h.mu.Lock()
	for room, conns := range h.rooms {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) HasSubscribers(batchID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[RoomFor(batchID)]) > 0
}

func (h *Hub) BatchStarted(batchID, folder string, total int) {
	h.broadcast(batchID, PayloadEvent{
		Event: EventBatchStarted,
		Data:  map[string]any{"folder": folder, "total": total},
	})
}

func (h *Hub) BatchProgress(batchID string, current, total int) {
	h.broadcast(batchID, PayloadEvent{
		Event: EventBatchProgress,
		Data:  ProgressPayload{Current: current, Total: total, Label: progressLabel(current, total)},
	})
}

func (h *Hub) BatchCompleted(batchID string, summary any) {
	h.broadcast(batchID, PayloadEvent{Event: EventBatchCompleted, Data: summary})
}

func (h *Hub) BatchError(batchID string, err error) {
	h.broadcast(batchID, PayloadEvent{Event: EventBatchError, Data: err.Error()})
}

func (h *Hub) broadcast(batchID string, pl PayloadEvent) {
	if !h.HasSubscribers(batchID) {
		return
	}
	pl.BatchID = batchID

	h.mu.RLock()
	conns := make([]conn, 0, len(h.rooms[RoomFor(batchID)]))
	for c := range h.rooms[RoomFor(batchID)] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	log := telemetry.L()
	h.wmu.Lock()
	defer h.wmu.Unlock()
	for _, c := range conns {
		if err := c.WriteJSON(pl); err != nil {
			log.Debug().Err(err).Str("batch_id", batchID).Msg("ws_write_err")
		}
	}
}
