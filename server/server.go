package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/preypred/components"
	"github.com/pthm-cable/preypred/game"
	"github.com/pthm-cable/preypred/telemetry"
)

// Simulation is the set of operations the feed exposes to operators.
type Simulation interface {
	Pause()
	Resume()
	Restart()
	SpawnAgent(kind components.Kind) error
	SpawnFoodBatch() int
	RemoveAt(pos components.Position) (components.AgentRecord, bool)
	History() []telemetry.PopulationPoint
	Frame() game.Frame
}

// Command actions accepted over the socket.
const (
	ActionPause         = "pause"
	ActionResume        = "resume"
	ActionRestart       = "restart"
	ActionSpawnPrey     = "spawn_prey"
	ActionSpawnPredator = "spawn_predator"
	ActionAddFood       = "add_food"
	ActionRemove        = "remove"
)

// Command is a client request.
type Command struct {
	Action string  `json:"action"`
	X      float64 `json:"x,omitempty"` // remove only
	Y      float64 `json:"y,omitempty"`
}

// Message types sent to clients.
const (
	MessageFrame = "frame"
	MessageReply = "reply"
	MessageError = "error"
)

// Message is the envelope for everything sent to a client.
type Message struct {
	Type   string      `json:"type"`
	Action string      `json:"action,omitempty"`
	Frame  *game.Frame `json:"frame,omitempty"`
	Error  string      `json:"error,omitempty"`
}

var (
	errUnknownAction = errors.New("unknown action")
	errNothingThere  = errors.New("no agent at position")
)

// Server serves the feed over HTTP.
type Server struct {
	sim      Simulation
	hub      *Hub
	upgrader websocket.Upgrader
}

// New creates a server for sim. Frames reach subscribers through Broadcast,
// which the caller wires to the simulation's frame callback.
func New(sim Simulation) *Server {
	return &Server{
		sim: sim,
		hub: NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow connections from any origin
			},
		},
	}
}

// Broadcast sends a frame to every subscriber.
func (s *Server) Broadcast(f game.Frame) { s.hub.Broadcast(f) }

// Hub returns the subscriber hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("feed listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving feed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down feed: %w", err)
	}
	return nil
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("failed to upgrade connection", "error", err)
		return
	}

	c := &client{
		srv:    s,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		remote: r.RemoteAddr,
	}
	s.hub.register(c)
	slog.Info("subscriber connected", "remote", c.remote, "subscribers", s.hub.SubscriberCount())

	// First paint
	f := s.sim.Frame()
	c.reply(Message{Type: MessageFrame, Frame: &f})

	go c.writePump()
	go c.readPump()
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.sim.History()); err != nil {
		slog.Error("failed to write history", "error", err)
	}
}

// apply runs one operator command and returns the reply.
func (s *Server) apply(cmd Command) Message {
	var err error
	switch cmd.Action {
	case ActionPause:
		s.sim.Pause()
	case ActionResume:
		s.sim.Resume()
	case ActionRestart:
		s.sim.Restart()
	case ActionSpawnPrey:
		err = s.sim.SpawnAgent(components.KindPrey)
	case ActionSpawnPredator:
		err = s.sim.SpawnAgent(components.KindPredator)
	case ActionAddFood:
		s.sim.SpawnFoodBatch()
	case ActionRemove:
		if _, ok := s.sim.RemoveAt(components.Pos(cmd.X, cmd.Y)); !ok {
			err = errNothingThere
		}
	default:
		err = fmt.Errorf("%w %q", errUnknownAction, cmd.Action)
	}

	if err != nil {
		slog.Warn("command failed", "action", cmd.Action, "error", err)
		return Message{Type: MessageError, Action: cmd.Action, Error: err.Error()}
	}
	slog.Info("command applied", "action", cmd.Action)
	return Message{Type: MessageReply, Action: cmd.Action}
}
