// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

// Package diag exposes the controller over HTTP: command snapshot, per-axis
// diagnostics, motion control, and a websocket stream of cycle snapshots.
// The server runs outside the tick thread and only touches the published
// snapshot and the mutex-guarded command state.
package diag

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/phi-robotics/motorlink/pkg/motor"
)

// streamInterval paces the websocket snapshot stream.
const streamInterval = 100 * time.Millisecond

// Server serves the control and diagnostic endpoints.
type Server struct {
	ctrl     *motor.Controller
	log      *zap.Logger
	stop     func()
	upgrader websocket.Upgrader
	http     *http.Server
}

// New builds a server over a controller. stop is invoked by POST
// /shutdown; pass the host loop's stop request.
func New(ctrl *motor.Controller, log *zap.Logger, stop func()) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		ctrl: ctrl,
		log:  log,
		stop: stop,
		upgrader: websocket.Upgrader{
			// The diag surface is plant-network only; no origin policy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/diag", s.handleDiag)
	mux.HandleFunc("/control", s.handleControl)
	mux.HandleFunc("/stop", s.handleStop)
	mux.HandleFunc("/shutdown", s.handleShutdown)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// ListenAndServe blocks serving on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.Handler()}
	s.log.Info("diag server listening", zap.String("addr", addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the listener.
func (s *Server) Shutdown() {
	if s.http != nil {
		_ = s.http.Close()
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, "motorlink running")
}

type StatusReply struct {
	Run  bool `json:"run"`
	Dir  int  `json:"dir"`
	Step int  `json:"step"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cmd := s.ctrl.CommandState()
	writeJSON(w, StatusReply{Run: cmd.Run, Dir: cmd.Direction, Step: cmd.Step})
}

type AxisReply struct {
	Status        uint16 `json:"status"`
	Mode          int8   `json:"mode"`
	Target        int32  `json:"tgt"`
	Actual        int32  `json:"act"`
	FollowingErr  int32  `json:"followingErr"`
	ErrorCode     uint16 `json:"err"`
	ServoError    uint16 `json:"servoErr"`
	DigitalInputs uint32 `json:"din"`
	ProbeStatus   uint16 `json:"tpst"`
	ProbePos      int32  `json:"tpp"`
	Enabled       bool   `json:"enabled"`
	Adapter       string `json:"adapter"`
}

type DiagReply struct {
	Cycle         uint64      `json:"cycle"`
	MotionStarted bool        `json:"motionStarted"`
	BarrierArmed  bool        `json:"barrierArmed"`
	Axes          []AxisReply `json:"axes"`
}

func (s *Server) diagSnapshot() DiagReply {
	snap := s.ctrl.SnapshotState()
	out := DiagReply{
		Cycle:         snap.Cycle,
		MotionStarted: snap.MotionStarted,
		BarrierArmed:  snap.BarrierArmed,
		Axes:          make([]AxisReply, len(snap.Axes)),
	}
	for i, a := range snap.Axes {
		out.Axes[i] = AxisReply{
			Status:        a.Status,
			Mode:          a.ModeDisplay,
			Target:        a.Target,
			Actual:        a.Actual,
			FollowingErr:  a.FollowingErr,
			ErrorCode:     a.ErrorCode,
			ServoError:    a.ServoError,
			DigitalInputs: a.DigitalInputs,
			ProbeStatus:   a.ProbeStatus,
			ProbePos:      a.ProbePos,
			Enabled:       a.ServoEnabled,
			Adapter:       s.ctrl.AdapterName(i),
		}
	}
	return out
}

func (s *Server) handleDiag(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.diagSnapshot())
}

type controlRequest struct {
	Direction string `json:"direction"`
	Step      int    `json:"step"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w)
		return
	}
	var dir int
	switch strings.ToLower(req.Direction) {
	case "forward":
		dir = 1
	case "reverse":
		dir = -1
	default:
		badRequest(w)
		return
	}
	if req.Step <= 0 || req.Step > 100000000 {
		badRequest(w)
		return
	}
	s.ctrl.SetCommand(true, dir, req.Step)
	s.log.Info("control command", zap.Int("dir", dir), zap.Int("step", req.Step))
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.ctrl.SetCommand(false, 0, motor.StepMin)
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
	if s.stop != nil {
		s.stop()
	}
}

// handleWS streams diag snapshots until the peer goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()
	for range ticker.C {
		if err := conn.WriteJSON(s.diagSnapshot()); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(`{"ok":false}`))
}
