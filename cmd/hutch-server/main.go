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

// Package main is the hutch server: a networked, versioned document store
// with CouchDB-style optimistic concurrency, a byte-capped replication
// log, and role-based access control over a websocket JSON protocol.
//
// This binary wires the pieces together:
//  1. A backing store (in-memory by default, Redis for durability).
//  2. The revision/lineage engine and credential store.
//  3. The bounded argon2 hash pool shared by all sessions.
//  4. The websocket listener, plus an optional Prometheus endpoint.
//  5. Graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hutch/internal/hutch/api"
	"hutch/internal/hutch/core"
	"hutch/internal/hutch/persistence"
)

func main() {
	addr := flag.String("addr", api.DefaultAddr, "Websocket listen address")
	backend := flag.String("backend", "memory", "Storage adapter: memory | redis")
	redisAddr := flag.String("redis_addr", "", "Redis address for the redis adapter (e.g. 127.0.0.1:6379)")
	redisReplicas := flag.Int("redis_replicas", 0, "Replicas that must acknowledge each write (0 = standalone, no wait)")
	redisNamespace := flag.String("redis_namespace", "", "Key prefix for the redis adapter (default \"hutch\")")
	logBytes := flag.Int64("commit_log_bytes", core.DefaultCommitLogBytes, "Replication log byte budget; oldest entries are evicted beyond it")
	adminMode := flag.Bool("admin_mode", false, "Admin-bypass mode: skip authentication but allow user management only")
	hashWorkers := flag.Int("hash_workers", 0, "Password-hash pool size (0 = GOMAXPROCS)")
	metricsAddr := flag.String("metrics_addr", "", "If non-empty, expose Prometheus /metrics on this address (e.g. :9090)")
	bootstrapUser := flag.String("bootstrap_user", "", "Seed one credential at startup as user:password:role1,role2 (skipped if the user exists)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := persistence.BuildStore(*backend, persistence.Config{
		RedisAddr: *redisAddr,
		Options: persistence.Options{
			Namespace:      *redisNamespace,
			Replicas:       *redisReplicas,
			CommitLogBytes: *logBytes,
		},
	})
	if err != nil {
		glog.Exitf("storage: %v", err)
	}

	pool := core.NewHashPool(*hashWorkers)
	creds := core.NewCredentials(store, pool)
	engine := core.NewEngine(store, store)

	mode := core.ModeNormal
	if *adminMode {
		mode = core.ModeAdminBypass
		glog.Info("admin-bypass mode: authentication disabled, user management only")
	}
	guard := core.NewGuard(creds, mode)

	if *bootstrapUser != "" {
		if err := bootstrap(ctx, creds, *bootstrapUser); err != nil {
			glog.Exitf("bootstrap user: %v", err)
		}
	}

	mux := http.NewServeMux()
	api.NewServer(ctx, engine, creds, guard).RegisterRoutes(mux)
	httpServer := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		glog.Infof("hutch listening on %s (backend %s)", *addr, *backend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Exitf("listen on %s: %v", *addr, err)
		}
	}()

	var metricsServer *http.Server
	if *metricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: *metricsAddr, Handler: metricsMux}
		go func() {
			glog.Infof("metrics on %s/metrics", *metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				glog.Errorf("metrics listen on %s: %v", *metricsAddr, err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	glog.Info("shutting down")
	cancel() // release in-flight session operations

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("server shutdown: %v", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			glog.Errorf("metrics shutdown: %v", err)
		}
	}

	pool.Stop()
	glog.Info("stopped")
	glog.Flush()
}

// bootstrap seeds one credential from a "user:password:role1,role2" spec,
// unless the user already exists. It exists so a volatile backend can come
// up with a usable account without a round through admin-bypass mode.
func bootstrap(ctx context.Context, creds *core.Credentials, spec string) error {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return fmt.Errorf("want user:password:role1,role2, got %q", spec)
	}
	username, password := parts[0], parts[1]
	roles, err := core.ParseRoles(strings.Split(parts[2], ","))
	if err != nil {
		return err
	}

	exists, err := creds.Exists(ctx, username)
	if err != nil {
		return err
	}
	if exists {
		glog.Infof("bootstrap user %q already present", username)
		return nil
	}
	if err := creds.Create(ctx, username, password, roles); err != nil {
		return err
	}
	glog.Infof("bootstrap user %q created with roles %v", username, roles)
	return nil
}
