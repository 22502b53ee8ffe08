// Package server exposes a live Progressor session over HTTP: a WebSocket
// stream of measurements and session events, plus a JSON status endpoint.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/gripforce/progctl/pkg/progressor"
	"github.com/gripforce/progctl/pkg/protocol"
)

// Frame is the JSON structure sent to all WebSocket clients. Exactly one of
// the payload fields is set per frame; Type names which.
type Frame struct {
	Type        string                `json:"type"` // "measurement", "device_info", "connection", "error"
	Measurement *protocol.Measurement `json:"measurement,omitempty"`
	DeviceInfo  *protocol.DeviceInfo  `json:"device_info,omitempty"`
	Connected   *bool                 `json:"connected,omitempty"`
	Error       string                `json:"error,omitempty"`
	Stamp       int64                 `json:"stamp"` // Unix ms
}

// Status is the /api/status response.
type Status struct {
	Connected  bool                  `json:"connected"`
	Measuring  bool                  `json:"measuring"`
	DeviceInfo protocol.DeviceInfo   `json:"device_info"`
	Current    *protocol.Measurement `json:"current,omitempty"`
	MaxWeight  float32               `json:"max_weight"`
	Clients    int                   `json:"clients"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Server bridges session events onto WebSocket clients.
type Server struct {
	session  *progressor.Session
	recorder *progressor.Recorder
	logger   *logrus.Logger

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
	subs     []*progressor.Subscription
}

// New creates a server around a session. The recorder backs the status
// endpoint's current/max readings and may be nil.
func New(session *progressor.Session, recorder *progressor.Recorder, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{
		session:  session,
		recorder: recorder,
		logger:   logger,
		clients:  make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.subscribe()
	return s
}

// subscribe fans session events into WebSocket frames.
func (s *Server) subscribe() {
	events := s.session.Events()
	s.subs = append(s.subs,
		events.OnMeasurement(func(m protocol.Measurement) {
			s.broadcast(Frame{Type: "measurement", Measurement: &m})
		}),
		events.OnDeviceInfo(func(info protocol.DeviceInfo) {
			s.broadcast(Frame{Type: "device_info", DeviceInfo: &info})
		}),
		events.OnConnectionChange(func(connected bool) {
			s.broadcast(Frame{Type: "connection", Connected: &connected})
		}),
		events.OnError(func(err error) {
			s.broadcast(Frame{Type: "error", Error: err.Error()})
		}),
	)
}

// Handler returns the HTTP handler; split out so tests can drive it through
// httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/status", s.handleStatus)
	return mux
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	s.logger.WithField("addr", addr).Info("Serving measurement stream")
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close detaches the server from the session's event hub.
func (s *Server) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithField("error", err).Warn("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.WithField("clients", total).Info("WebSocket client connected")

	// Greet with the current connection state and device info.
	connected := s.session.IsConnected()
	hello := Frame{Type: "connection", Connected: &connected, Stamp: time.Now().UnixMilli()}
	if data, err := json.Marshal(hello); err == nil {
		client.send <- data
	}
	if connected {
		info := s.session.DeviceInfo()
		frame := Frame{Type: "device_info", DeviceInfo: &info, Stamp: time.Now().UnixMilli()}
		if data, err := json.Marshal(frame); err == nil {
			client.send <- data
		}
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (drains incoming messages / keep-alive)
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			total := len(s.clients)
			s.clientsMu.Unlock()
			close(client.send)
			s.logger.WithField("clients", total).Info("WebSocket client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.clientsMu.RLock()
	clients := len(s.clients)
	s.clientsMu.RUnlock()

	status := Status{
		Connected:  s.session.IsConnected(),
		Measuring:  s.session.IsMeasuring(),
		DeviceInfo: s.session.DeviceInfo(),
		Clients:    clients,
	}
	if s.recorder != nil {
		if cur, ok := s.recorder.Current(); ok {
			status.Current = &cur
		}
		status.MaxWeight = s.recorder.Max()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.WithField("error", err).Warn("Status encode failed")
	}
}

// broadcast stamps and fans a frame out to every connected client. A client
// whose send buffer is full misses the frame rather than stalling the
// emitter.
func (s *Server) broadcast(frame Frame) {
	frame.Stamp = time.Now().UnixMilli()
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
