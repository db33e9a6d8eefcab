package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/Navnit-07/kanban-realtime-websocket/domain"
)

// Register wires up all routes on the provided Echo instance.
func Register(e *echo.Echo, hub *Hub, logger *log.Logger) {
	e.GET("/ws", serveWS(hub, logger))
	e.GET("/api/tasks", getTasks(hub))
	e.GET("/healthz", healthz())
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect from arbitrary origins; auth is out of scope.
	CheckOrigin: func(*http.Request) bool { return true },
}

func serveWS(hub *Hub, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			logger.Errorf("websocket upgrade: %v", err)
			return err
		}
		s := &Session{
			ID:   uuid.NewString(),
			hub:  hub,
			conn: conn,
			send: make(chan []byte, sendBufferSize),
			log:  logger,
		}
		hub.register <- s
		go s.writePump()
		go s.readPump()
		return nil
	}
}

// getTasks serves the current board snapshot over plain HTTP so dashboards
// and scripts can read it without holding a socket open.
func getTasks(hub *Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, tasksResponse{Tasks: hub.Snapshot()})
	}
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}
