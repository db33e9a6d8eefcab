package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Navnit-07/kanban-realtime-websocket/domain"
)

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	store := domain.NewStore()
	hub := NewHub(domain.NewEngine(store), store, newTestLogger(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	e := echo.New()
	Register(e, hub, newTestLogger())
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := decodeEnvelope(msg)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := sonic.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	msg, err := sonic.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWebSocketEndToEnd(t *testing.T) {
	srv, _ := newTestServer(t)

	c1 := dial(t, srv)
	if env := readEnvelope(t, c1); env.Event != EventSyncTasks {
		t.Fatalf("expected %s on connect, got %s", EventSyncTasks, env.Event)
	}
	c2 := dial(t, srv)
	if env := readEnvelope(t, c2); env.Event != EventSyncTasks {
		t.Fatalf("expected %s on connect, got %s", EventSyncTasks, env.Event)
	}

	writeEvent(t, c1, EventTaskCreate, domain.TaskCreate{Title: "T", Status: domain.StatusTodo, Priority: domain.PriorityLow, Category: domain.CategoryBug})

	var created domain.Task
	for _, conn := range []*websocket.Conn{c1, c2} {
		env := readEnvelope(t, conn)
		if env.Event != EventTaskCreated {
			t.Fatalf("expected %s, got %s", EventTaskCreated, env.Event)
		}
		var task domain.Task
		if err := sonic.Unmarshal(env.Data, &task); err != nil {
			t.Fatalf("decode task: %v", err)
		}
		if task.Title != "T" || task.ID == "" || task.CreatedAt == "" {
			t.Fatalf("unexpected task: %#v", task)
		}
		created = task
	}

	writeEvent(t, c2, EventTaskDelete, created.ID)
	for _, conn := range []*websocket.Conn{c1, c2} {
		env := readEnvelope(t, conn)
		if env.Event != EventTaskDeleted {
			t.Fatalf("expected %s, got %s", EventTaskDeleted, env.Event)
		}
		var id string
		if err := sonic.Unmarshal(env.Data, &id); err != nil {
			t.Fatalf("decode id: %v", err)
		}
		if id != created.ID {
			t.Fatalf("expected %q, got %q", created.ID, id)
		}
	}
}

func TestResyncOverWebSocket(t *testing.T) {
	srv, hub := newTestServer(t)
	hub.engine.Create(domain.TaskCreate{Title: "pre-existing", Status: domain.StatusTodo})

	conn := dial(t, srv)
	if env := readEnvelope(t, conn); env.Event != EventSyncTasks {
		t.Fatalf("expected %s, got %s", EventSyncTasks, env.Event)
	}

	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	msg, err := sonic.Marshal(Envelope{Event: EventSyncTasks})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	env := readEnvelope(t, conn)
	if env.Event != EventSyncTasks {
		t.Fatalf("expected %s, got %s", EventSyncTasks, env.Event)
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(env.Data, &tasks); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "pre-existing" {
		t.Fatalf("unexpected snapshot: %#v", tasks)
	}
}

func TestGetTasksEndpoint(t *testing.T) {
	srv, hub := newTestServer(t)
	hub.engine.Create(domain.TaskCreate{Title: "T", Status: domain.StatusTodo})

	resp, err := http.Get(srv.URL + "/api/tasks")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 got %d", resp.StatusCode)
	}
	var body tasksResponse
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(body.Tasks) != 1 || body.Tasks[0].Title != "T" {
		t.Fatalf("unexpected tasks: %#v", body.Tasks)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 got %d", resp.StatusCode)
	}
}
