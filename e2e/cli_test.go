package e2e_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/geoseek/internal/factory"
	"github.com/mcoot/geoseek/internal/model"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "geoseek-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/geoseek")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
	}
}

func (r *cliRunner) command(args ...string) *exec.Cmd {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--output", "json",
	}, args...)

	return exec.Command(r.binaryPath, fullArgs...)
}

func (r *cliRunner) run(args ...string) (string, error) {
	output, err := r.command(args...).CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	app      *factory.App
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	// Create application; a short tick makes countdowns run fast
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	app, err := factory.New(factory.Config{
		Logger:       logger,
		TickInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	server := &http.Server{
		Addr:    addr,
		Handler: app.Router(nil),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go app.Run(ctx)

	// Start server
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		app:  app,
		addr: serverURL,
		shutdown: func() {
			cancel()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = server.Shutdown(shutdownCtx)
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type createResponse struct {
	SessionID string `json:"sessionId"`
}

type listResponse struct {
	Sessions []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		PlayerCount int    `json:"playerCount"`
	} `json:"sessions"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

type streamEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func createArgs(name string, extra ...string) []string {
	return append([]string{
		"session", "create",
		"--name", name,
		"--display-name", "Alice",
		"--lon", "-122.4194",
		"--lat", "37.7749",
		"--radius", "500",
		"--duration", "1",
	}, extra...)
}

func createSession(t *testing.T, cli *cliRunner, name string, extra ...string) string {
	t.Helper()

	output, err := cli.run(createArgs(name, extra...)...)
	require.NoError(t, err, "output: %s", output)

	var resp createResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Storage)
}

func TestCLI_SessionCommands(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	id := createSession(t, cli, "Park", "--start-delay", "600")
	createSession(t, cli, "Secret", "--password", "hunter2", "--start-delay", "600")

	// Get
	output, err := cli.run("session", "get", id)
	require.NoError(t, err, "output: %s", output)
	var snap model.SessionSnapshot
	require.NoError(t, json.Unmarshal([]byte(output), &snap))
	assert.Equal(t, model.SessionID(id), snap.ID)
	assert.Equal(t, model.PhasePending, snap.Phase)
	require.Len(t, snap.Roster, 1)
	assert.Equal(t, "Alice", snap.Roster[0].DisplayName)

	// List shows only the public session
	output, err = cli.run("session", "list")
	require.NoError(t, err, "output: %s", output)
	var list listResponse
	require.NoError(t, json.Unmarshal([]byte(output), &list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, id, list.Sessions[0].ID)
	assert.Equal(t, 1, list.Sessions[0].PlayerCount)

	// Creating the same session again is rejected
	output, err = cli.run(createArgs("Park")...)
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "already exists")
}

func TestCLI_ErrorHandling(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Missing duration
	output, err := cli.run("session", "create", "--name", "Park", "--display-name", "Alice",
		"--lon", "1", "--lat", "1", "--radius", "100")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "missing duration")

	// Unknown session
	output, err = cli.run("session", "get", "nope")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "not found")

	// No summary for a session that has not ended
	id := createSession(t, cli, "Park", "--start-delay", "600")
	output, err = cli.run("session", "summary", id)
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "not found")
}

func TestCLI_PlayFullSession(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	id := createSession(t, cli, "Park")

	cmd := cli.command("play", id, "--name", "Alice", "--lon", "-122.4194", "--lat", "37.7749", "--json")
	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	events := make(chan streamEvent, 64)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			var evt streamEvent
			if json.Unmarshal(scanner.Bytes(), &evt) == nil {
				events <- evt
			}
		}
	}()

	waitFor := func(event string) streamEvent {
		t.Helper()
		timeout := time.After(10 * time.Second)
		for {
			select {
			case evt, ok := <-events:
				require.True(t, ok, "stream closed before %s", event)
				if evt.Event == event {
					return evt
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %s", event)
			}
		}
	}

	joined := waitFor(string(model.EventSessionJoined))
	var payload model.SessionJoinedPayload
	require.NoError(t, json.Unmarshal(joined.Payload, &payload))
	assert.Equal(t, payload.Session.AdminPlayerID, payload.Player.ID)

	_, err = io.WriteString(stdin, "seeker "+string(payload.Player.ID)+" on\n")
	require.NoError(t, err)
	waitFor(string(model.EventRoleUpdate))

	_, err = io.WriteString(stdin, "start\n")
	require.NoError(t, err)
	waitFor(string(model.EventSessionStarted))
	waitFor(string(model.EventSessionEnded))

	// play exits on its own once the session ends
	require.NoError(t, cmd.Wait())

	output, err := cli.run("session", "summary", id)
	require.NoError(t, err, "output: %s", output)
	var summary model.SessionSummary
	require.NoError(t, json.Unmarshal([]byte(output), &summary))
	assert.Equal(t, "Park", summary.Name)
	assert.Equal(t, []model.PlayerID{payload.Player.ID}, summary.SeekerIDs)
}
