// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait  = 2 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served from anywhere on the LAN
	},
}

// Server exposes a Hub over HTTP:
//
//	GET /api/orientation  latest pose
//	GET /api/sample       latest raw sample
//	GET /api/quaternion   latest quaternion
//	GET /api/snapshot     everything above in one object
//	GET /api/stats        acquisition counters (when a stats func is set)
//	GET /ws               websocket stream of snapshots
type Server struct {
	hub       *Hub
	stats     func() any
	staticDir string
}

// Option configures a Server.
type Option func(*Server)

// WithStats exposes fn's result on /api/stats.
func WithStats(fn func() any) Option {
	return func(s *Server) { s.stats = fn }
}

// WithStatic serves files from dir on /.
func WithStatic(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

func NewServer(hub *Hub, opts ...Option) *Server {
	s := &Server{hub: hub}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/orientation", s.part(func(snap Snapshot) any {
		if snap.Pose == nil {
			return nil
		}
		return snap.Pose
	}))
	mux.HandleFunc("/api/sample", s.part(func(snap Snapshot) any {
		if snap.Sample == nil {
			return nil
		}
		return snap.Sample
	}))
	mux.HandleFunc("/api/quaternion", s.part(func(snap Snapshot) any {
		if snap.Quaternion == nil {
			return nil
		}
		return snap.Quaternion
	}))
	mux.HandleFunc("/api/snapshot", s.part(func(snap Snapshot) any { return snap }))
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/ws", s.handleWS)
	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
	return mux
}

// part serves one field of the latest snapshot, 503 until it exists.
func (s *Server) part(pick func(Snapshot) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := s.hub.Last()
		var v any
		if ok {
			v = pick(snap)
		}
		if v == nil {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, v)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, s.stats())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("web: json encode error: %v", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	id, updates := s.hub.Subscribe(8)
	defer s.hub.Unsubscribe(id)
	log.Debugf("web: websocket client %d joined from %s", id, r.RemoteAddr)

	// Reader: only there to process control frames and notice the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			log.Debugf("web: websocket client %d left", id)
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				log.Debugf("web: websocket client %d write: %v", id, err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Infof("web: listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if lerr := <-errc; lerr != nil && !errors.Is(lerr, http.ErrServerClosed) {
			return lerr
		}
		return err
	}
}
