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

package core

import "github.com/prometheus/client_golang/prometheus"

// Service-level Prometheus metrics. Label cardinality is bounded: method
// and status come from fixed tables, never from client input.
var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hutch_requests_total",
		Help: "Wire requests handled, by method and response status",
	}, []string{"method", "status"})
	writesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hutch_writes_accepted_total",
		Help: "Document writes accepted (a new revision was committed)",
	})
	conflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hutch_lineage_conflicts_total",
		Help: "Writes rejected with a lineage conflict",
	})
	commitAppendsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hutch_commit_log_appends_total",
		Help: "Entries appended to the replication log",
	})
	sessionsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hutch_sessions_open",
		Help: "Currently open client sessions",
	})
	hashQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hutch_hash_queue_depth",
		Help: "Password hashes queued or running on the hash pool",
	})
)

func init() {
	// Registered eagerly; harmless if no /metrics endpoint is exposed.
	prometheus.MustRegister(requestsTotal, writesTotal, conflictsTotal,
		commitAppendsTotal, sessionsOpen, hashQueueDepth)
}

// RecordRequest counts one handled wire request.
func RecordRequest(method string, status Code) {
	requestsTotal.WithLabelValues(method, string(status)).Inc()
}

// SessionOpened and SessionClosed track the open-session gauge.
func SessionOpened() { sessionsOpen.Inc() }
func SessionClosed() { sessionsOpen.Dec() }

func recordWrite()        { writesTotal.Inc() }
func recordConflict()     { conflictsTotal.Inc() }
func recordCommitAppend() { commitAppendsTotal.Inc() }
