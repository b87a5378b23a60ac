// Copyright 2026 Esteban Alvarez. All Rights Reserved.
//
// Created: September 2026
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"hutch/internal/hutch/core"
)

// DefaultAddr is the conventional listen address.
const DefaultAddr = ":5919"

// Server upgrades inbound HTTP requests to websocket sessions and runs
// each session against the shared engine, credential store, and guard.
type Server struct {
	engine *core.Engine
	creds  *core.Credentials
	guard  *core.Guard

	ctx      context.Context
	upgrader websocket.Upgrader
}

// NewServer builds a server. ctx bounds every session: cancel it and
// in-flight operations are released during shutdown.
func NewServer(ctx context.Context, engine *core.Engine, creds *core.Credentials, guard *core.Guard) *Server {
	return &Server{
		engine: engine,
		creds:  creds,
		guard:  guard,
		ctx:    ctx,
		upgrader: websocket.Upgrader{
			// Any origin may connect; the origin is captured per session
			// for audit logging, the security boundary is auth.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes sets up the websocket endpoint on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleSocket)
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	newSession(ws, origin, s.engine, s.creds, s.guard).run(s.ctx)
}
