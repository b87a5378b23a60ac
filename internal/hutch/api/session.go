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
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"hutch/internal/hutch/core"
)

// sessionConn is the slice of *websocket.Conn a session touches, split out
// so tests can drive a session over an in-memory channel.
type sessionConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session owns one long-lived client channel. Frames are read in arrival
// order; each is handled on its own goroutine, so responses may complete
// out of order and the envelope's correlation id is the only matching
// mechanism. After the channel closes, late responses are discarded.
type Session struct {
	id     string
	origin string

	conn   sessionConn
	engine *core.Engine
	creds  *core.Credentials
	guard  *core.Guard

	// identity is written by a successful auth and read by every access
	// check; requests on one session run concurrently.
	identityMu sync.Mutex
	identity   core.Identity

	writeMu  sync.Mutex
	closed   atomic.Bool
	handlers sync.WaitGroup
}

func newSession(conn sessionConn, origin string, engine *core.Engine, creds *core.Credentials, guard *core.Guard) *Session {
	return &Session{
		id:       ulid.Make().String(),
		origin:   origin,
		conn:     conn,
		engine:   engine,
		creds:    creds,
		guard:    guard,
		identity: core.Anonymous(),
	}
}

// run reads frames until the channel dies, then waits for in-flight
// handlers (their responses are discarded via the closed flag).
func (s *Session) run(ctx context.Context) {
	core.SessionOpened()
	glog.V(2).Infof("session %s open (origin %q)", s.id, s.origin)
	defer func() {
		s.closed.Store(true)
		s.conn.Close()
		s.handlers.Wait()
		core.SessionClosed()
		glog.V(2).Infof("session %s closed", s.id)
	}()

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			glog.V(2).Infof("session %s read: %v", s.id, err)
			return
		}
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			s.handle(ctx, frame)
		}()
	}
}

func (s *Session) handle(ctx context.Context, frame []byte) {
	req, err := ParseRequest(frame)
	if req == nil {
		// No usable correlation id: nothing to respond against.
		glog.Errorf("session %s (origin %q): dropped frame: %v", s.id, s.origin, err)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("session %s (origin %q): panic handling %s: %v", s.id, s.origin, req.Method, r)
			s.respond(errorResponse(req.ID, nil))
		}
	}()

	var result any
	if err == nil {
		result, err = s.dispatch(ctx, req)
	}

	core.RecordRequest(metricMethod(req.Method), statusOf(err))
	if err != nil {
		if core.CodeOf(err) == core.CodeUnknown {
			// Internal failure: full detail stays in the server log,
			// keyed by the session's originating identity; the client
			// sees only the opaque code.
			glog.Errorf("session %s (origin %q): %s: %v", s.id, s.origin, req.Method, err)
		}
		s.respond(errorResponse(req.ID, err))
		return
	}
	s.respond(okResponse(req.ID, result))
}

func statusOf(err error) core.Code {
	if err == nil {
		return core.CodeOK
	}
	return core.CodeOf(err)
}

func (s *Session) dispatch(ctx context.Context, req *Request) (any, error) {
	switch req.Method {
	case MethodWatch, MethodDump:
		return nil, core.ErrNotImplemented(req.Method)
	case MethodSave, MethodGet, MethodAuth, MethodCreateUser, MethodRevokeUser, MethodListUsers:
	default:
		// Unrecognized methods are a generic failure on the wire; the
		// detail stays server-side.
		return nil, fmt.Errorf("unknown method %q", req.Method)
	}

	if need := methodRoles[req.Method]; len(need) > 0 {
		if err := s.guard.Require(ctx, s.who(), need...); err != nil {
			return nil, err
		}
	}

	switch req.Method {
	case MethodSave:
		return s.handleSave(ctx, req)
	case MethodGet:
		return s.handleGet(ctx, req)
	case MethodAuth:
		return s.handleAuth(ctx, req)
	case MethodCreateUser:
		return s.handleCreateUser(ctx, req)
	case MethodRevokeUser:
		return s.handleRevokeUser(ctx, req)
	default: // MethodListUsers
		return s.creds.List(ctx)
	}
}

// handleSave accepts the write but does not surface the new revision id;
// success alone tells the caller the leaf advanced.
func (s *Session) handleSave(ctx context.Context, req *Request) (any, error) {
	collection, err := req.StringArg(0)
	if err != nil {
		return nil, err
	}
	doc, err := req.DocArg(1)
	if err != nil {
		return nil, err
	}
	if _, err := s.engine.Save(ctx, collection, doc); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Session) handleGet(ctx context.Context, req *Request) (any, error) {
	collection, err := req.StringArg(0)
	if err != nil {
		return nil, err
	}
	id, err := req.StringArg(1)
	if err != nil {
		return nil, err
	}
	return s.engine.Get(ctx, collection, id)
}

func (s *Session) handleAuth(ctx context.Context, req *Request) (any, error) {
	username, err := req.StringArg(0)
	if err != nil {
		return nil, err
	}
	password, err := req.StringArg(1)
	if err != nil {
		return nil, err
	}

	ok, err := s.creds.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrDenied(core.Anonymous(), nil)
	}

	s.identityMu.Lock()
	s.identity = core.Authenticated(username)
	s.identityMu.Unlock()
	glog.V(2).Infof("session %s authenticated as %q", s.id, username)
	return nil, nil
}

func (s *Session) handleCreateUser(ctx context.Context, req *Request) (any, error) {
	username, err := req.StringArg(0)
	if err != nil {
		return nil, err
	}
	password, err := req.StringArg(1)
	if err != nil {
		return nil, err
	}
	roleNames, err := req.StringsArg(2)
	if err != nil {
		return nil, err
	}
	roles, err := core.ParseRoles(roleNames)
	if err != nil {
		return nil, err
	}
	return nil, s.creds.Create(ctx, username, password, roles)
}

func (s *Session) handleRevokeUser(ctx context.Context, req *Request) (any, error) {
	username, err := req.StringArg(0)
	if err != nil {
		return nil, err
	}
	return nil, s.creds.Revoke(ctx, username)
}

func (s *Session) who() core.Identity {
	s.identityMu.Lock()
	defer s.identityMu.Unlock()
	return s.identity
}

// respond emits one envelope unless the session already closed.
func (s *Session) respond(resp Response) {
	if s.closed.Load() {
		return
	}
	frame, err := json.Marshal(resp)
	if err != nil {
		glog.Errorf("session %s: response encode: %v", s.id, err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		glog.V(2).Infof("session %s write: %v", s.id, err)
	}
}
