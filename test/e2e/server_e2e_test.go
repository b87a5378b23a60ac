//go:build e2e

// Package e2e contains end-to-end tests that launch the real server binary
// and exercise realistic scenarios over the wire protocol: the document
// save/conflict/merge cycle, account administration, and the admin-bypass
// bootstrap path.
package e2e

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"hutch/pkg/client"
)

var httpClient = &http.Client{Timeout: 2 * time.Second}

type runningServer struct {
	cmd       *exec.Cmd
	url       string
	logLinesC chan string
}

// buildAndStartServer builds cmd/hutch-server into a temp dir and starts it
// on a random free port with the provided flags, plus a bootstrap admin
// account (alice, all roles) so the volatile memory backend comes up
// usable. It returns once the server accepts websocket connections.
func buildAndStartServer(t *testing.T, extraArgs ...string) *runningServer {
	t.Helper()

	// Determine an available TCP port.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	_, port, _ := net.SplitHostPort(addr)

	// Build the server binary to a temp location.
	tmpDir := t.TempDir()
	exe := filepath.Join(tmpDir, exeName("hutch-server"))
	// Build using the module import path so it works regardless of the
	// current working directory.
	build := exec.Command("go", "build", "-o", exe, "hutch/cmd/hutch-server")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		t.Fatalf("failed to build server: %v", err)
	}

	args := []string{
		"-logtostderr",
		"-addr=127.0.0.1:" + port,
		"-backend=memory",
		"-bootstrap_user=alice:password1:read,write,users",
	}
	args = append(args, extraArgs...)

	cmd := exec.Command(exe, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatalf("StdoutPipe: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.Fatalf("StderrPipe: %v", err)
	}

	logC := make(chan string, 1024)
	go scanLines(stdout, logC)
	go scanLines(stderr, logC)

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	// Wait for the readiness line, then prove the listener accepts
	// websocket upgrades with a real dial.
	_ = waitForReady(t, logC, "listening on")
	url := "ws://127.0.0.1:" + port
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok := false
	for ctx.Err() == nil {
		conn, err := client.Dial(ctx, url)
		if err == nil {
			conn.Close()
			ok = true
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !ok {
		_ = cmd.Process.Kill()
		t.Fatalf("server did not become ready (websocket dial failed)")
	}

	rs := &runningServer{cmd: cmd, url: url, logLinesC: logC}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})
	return rs
}

// scanLines copies lines from the child's stdout/stderr into a channel so
// tests can observe server logs in near real-time.
func scanLines(r io.ReadCloser, out chan<- string) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		out <- s.Text()
	}
}

// waitForReady blocks until a log line containing the given needle appears
// or a short timeout elapses.
func waitForReady(t *testing.T, logC <-chan string, needle string) bool {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case line := <-logC:
			if strings.Contains(line, needle) {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

// exeName returns the executable name for the current OS (adds .exe on
// Windows).
func exeName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func dial(t *testing.T, url string) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := client.Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// --- Tests ---

// TestE2E_DocumentLifecycle walks the full optimistic-concurrency cycle
// against a real server: first write, read-back with a server revision,
// blind-write conflict carrying the lineage chain, and a merge onto the
// leaf that is then visible to a second connection.
func TestE2E_DocumentLifecycle(t *testing.T) {
	rs := buildAndStartServer(t)
	ctx := context.Background()

	conn := dial(t, rs.url)
	if err := conn.Auth(ctx, "alice", "password1"); err != nil {
		t.Fatalf("auth: %v", err)
	}

	if err := conn.Save(ctx, "notes", map[string]any{"id": "doc1", "title": "first"}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	doc, err := conn.Get(ctx, "notes", "doc1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	rev, _ := doc["revision"].(string)
	if len(rev) != 32 || doc["title"] != "first" {
		t.Fatalf("leaf = %v", doc)
	}

	// A write that ignores the current revision is refused with the chain
	// needed to merge.
	err = conn.Save(ctx, "notes", map[string]any{"id": "doc1", "title": "blind"})
	chain, ok := client.Lineage(err)
	if !ok {
		t.Fatalf("expected a lineage conflict, got %v", err)
	}
	if len(chain) != 1 || chain[0]["revision"] != rev {
		t.Fatalf("chain = %v", chain)
	}

	merged := map[string]any{"id": "doc1", "title": "merged", "revision": rev}
	if err := conn.Save(ctx, "notes", merged); err != nil {
		t.Fatalf("merged save: %v", err)
	}

	// A second connection sees the merged leaf with a fresh revision.
	other := dial(t, rs.url)
	if err := other.Auth(ctx, "alice", "password1"); err != nil {
		t.Fatalf("auth: %v", err)
	}
	doc, err = other.Get(ctx, "notes", "doc1")
	if err != nil {
		t.Fatalf("get on second connection: %v", err)
	}
	if doc["title"] != "merged" || doc["revision"] == rev || doc["parentRevision"] != rev {
		t.Fatalf("merged leaf = %v", doc)
	}
}

// TestE2E_AccountAdministration provisions a reader, verifies its role
// boundary, revokes it, and confirms the revocation bites on a fresh
// connection.
func TestE2E_AccountAdministration(t *testing.T) {
	rs := buildAndStartServer(t)
	ctx := context.Background()

	admin := dial(t, rs.url)
	if err := admin.Auth(ctx, "alice", "password1"); err != nil {
		t.Fatalf("auth: %v", err)
	}
	if err := admin.Save(ctx, "notes", map[string]any{"id": "doc1", "n": 1}); err != nil {
		t.Fatalf("seed save: %v", err)
	}
	if err := admin.CreateUser(ctx, "bob", "password2", []string{"read"}); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	names, err := admin.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
		t.Fatalf("users = %v", names)
	}

	bob := dial(t, rs.url)
	if err := bob.Auth(ctx, "bob", "password2"); err != nil {
		t.Fatalf("bob auth: %v", err)
	}
	if _, err := bob.Get(ctx, "notes", "doc1"); err != nil {
		t.Fatalf("bob get: %v", err)
	}
	err = bob.Save(ctx, "notes", map[string]any{"id": "doc2"})
	if ce, ok := err.(*client.CallError); !ok || ce.Status != "denied" {
		t.Fatalf("bob save = %v", err)
	}

	if err := admin.RevokeUser(ctx, "bob"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// Revocation takes effect immediately for the live session too.
	if _, err := bob.Get(ctx, "notes", "doc1"); err == nil {
		t.Fatal("revoked bob still reads")
	}
	bob2 := dial(t, rs.url)
	err = bob2.Auth(ctx, "bob", "password2")
	if ce, ok := err.(*client.CallError); !ok || ce.Status != "denied" {
		t.Fatalf("revoked auth = %v", err)
	}
}

// TestE2E_AdminBypassBootstrap verifies the bootstrap mode: account
// administration without authentication, everything else refused.
func TestE2E_AdminBypassBootstrap(t *testing.T) {
	rs := buildAndStartServer(t, "-admin_mode")
	ctx := context.Background()

	conn := dial(t, rs.url)
	if err := conn.CreateUser(ctx, "carol", "password3", []string{"read", "write"}); err != nil {
		t.Fatalf("unauthenticated create-user: %v", err)
	}
	err := conn.Save(ctx, "notes", map[string]any{"id": "doc1"})
	if ce, ok := err.(*client.CallError); !ok || ce.Status != "denied" {
		t.Fatalf("save under bypass = %v", err)
	}
	names, err := conn.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list under bypass: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("users = %v", names)
	}
}

// TestE2E_ReservedMethods confirms the reserved change-feed surface
// answers with the explicit not-implemented status.
func TestE2E_ReservedMethods(t *testing.T) {
	rs := buildAndStartServer(t)
	ctx := context.Background()

	conn := dial(t, rs.url)
	for _, method := range []string{"watch", "dump"} {
		_, err := conn.Call(ctx, method, "notes")
		if ce, ok := err.(*client.CallError); !ok || ce.Status != "notimpl" {
			t.Fatalf("%s = %v", method, err)
		}
	}
}

// TestE2E_ConcurrentWritersOneWinner races several connections writing
// against the same leaf; exactly one save lands, the rest get the chain.
func TestE2E_ConcurrentWritersOneWinner(t *testing.T) {
	rs := buildAndStartServer(t)
	ctx := context.Background()

	seed := dial(t, rs.url)
	if err := seed.Auth(ctx, "alice", "password1"); err != nil {
		t.Fatalf("auth: %v", err)
	}
	if err := seed.Save(ctx, "notes", map[string]any{"id": "doc1", "n": 0}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	base, err := seed.Get(ctx, "notes", "doc1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	rev := base["revision"]

	const writers = 4
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			conn, err := client.Dial(ctx, rs.url)
			if err != nil {
				results <- err
				return
			}
			defer conn.Close()
			if err := conn.Auth(ctx, "alice", "password1"); err != nil {
				results <- err
				return
			}
			results <- conn.Save(ctx, "notes", map[string]any{
				"id": "doc1", "n": i + 1, "revision": rev,
			})
		}(i)
	}

	accepted, conflicted := 0, 0
	for i := 0; i < writers; i++ {
		err := <-results
		if err == nil {
			accepted++
			continue
		}
		if _, ok := client.Lineage(err); ok {
			conflicted++
			continue
		}
		t.Fatalf("writer failed: %v", err)
	}
	if accepted != 1 || conflicted != writers-1 {
		t.Fatalf("accepted=%d conflicted=%d", accepted, conflicted)
	}
}

// TestE2E_MetricsEndpoint validates the optional Prometheus endpoint.
func TestE2E_MetricsEndpoint(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	metricsAddr := ln.Addr().String()
	_ = ln.Close()

	rs := buildAndStartServer(t, "-metrics_addr="+metricsAddr)
	ctx := context.Background()

	conn := dial(t, rs.url)
	if err := conn.Auth(ctx, "alice", "password1"); err != nil {
		t.Fatalf("auth: %v", err)
	}

	body := fetchMetrics(t, "http://"+metricsAddr+"/metrics")
	if !strings.Contains(body, "hutch_requests_total") {
		t.Fatalf("expected request counters in metrics output")
	}
	if !strings.Contains(body, "hutch_sessions_open") {
		t.Fatalf("expected the session gauge in metrics output")
	}
}

func fetchMetrics(t *testing.T, url string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		body, err := httpGet(url)
		if err == nil {
			return body
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics endpoint never came up: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func httpGet(url string) (string, error) {
	resp, err := httpClient.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}
