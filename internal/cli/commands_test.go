package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/headline-goat/funnel-goat/internal/attribution"
	"github.com/headline-goat/funnel-goat/internal/pipeline"
	"github.com/headline-goat/funnel-goat/internal/store"
	"github.com/headline-goat/funnel-goat/internal/telemetry"
)

// newTestDB returns a database path in a fresh directory and isolates the
// environment the commands read.
func newTestDB(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"FG_ROUTES_FILE", "FG_SERVER_URL", "FG_SINK_A_ENDPOINT", "FG_SINK_B_CONTAINER_ID"} {
		t.Setenv(key, "")
	}
	t.Setenv("FG_PORT", "8080")
	t.Setenv("FG_LOG_LEVEL", "disabled")
	return filepath.Join(t.TempDir(), "fg.db")
}

// runCLI executes the root command against db and returns stdout.
func runCLI(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()

	exportFormat = "csv"
	attributionSession = ""
	sweepIdle = 0
	port = 0

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append(args, "--db", db))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

// seedSession stores two navigations of session s1 of visitor v1.
func seedSession(t *testing.T, db string, lastSeen time.Time) {
	t.Helper()

	s, err := store.Open(db)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.TouchSession(ctx, "s1", "v1", lastSeen); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}

	p := pipeline.New(
		telemetry.NewDispatcher(telemetry.Config{}, zerolog.Nop()),
		store.NewAdapter(s.Session("s1"), s.Durable("v1")),
		pipeline.Options{},
	)
	p.Navigate(ctx, "/?utm_source=google&utm_campaign=spring", "Home")
	p.Navigate(ctx, "/pricing", "Pricing")
}

func TestUTMCommand(t *testing.T) {
	db := newTestDB(t)

	out, err := runCLI(t, db, "utm", "https://example.com/pricing?utm_source=google&utm_medium=cpc&ref=x")
	if err != nil {
		t.Fatalf("utm: %v", err)
	}

	var got attribution.Params
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if diff := cmp.Diff(attribution.Params{Source: "google", Medium: "cpc"}, got); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestUTMCommand_NoParams(t *testing.T) {
	db := newTestDB(t)

	out, err := runCLI(t, db, "utm", "https://example.com/?utm_source=")
	if err != nil {
		t.Fatalf("utm: %v", err)
	}
	if !strings.Contains(out, "No UTM parameters.") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestStageCommand(t *testing.T) {
	db := newTestDB(t)

	out, err := runCLI(t, db, "stage", "/", "/pricing/", "/docs/install?x=1", "/nowhere")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	want := map[string]string{
		"/":                 "awareness",
		"/pricing/":         "intent",
		"/docs/install?x=1": "consideration",
		"/nowhere":          "awareness",
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(want)+1 {
		t.Fatalf("expected %d lines, got:\n%s", len(want)+1, out)
	}
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) != 2 || want[fields[0]] != fields[1] {
			t.Errorf("unexpected line %q", line)
		}
	}
}

func TestStageCommand_RoutesFile(t *testing.T) {
	db := newTestDB(t)
	routes := filepath.Join(t.TempDir(), "routes.yaml")
	yaml := "routes:\n  - path: /launch\n    stage: intent\n    match: prefix\n"
	if err := os.WriteFile(routes, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write routes: %v", err)
	}
	t.Setenv("FG_ROUTES_FILE", routes)

	out, err := runCLI(t, db, "stage", "/launch/week", "/pricing")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if !strings.Contains(out, "/launch/week  intent") {
		t.Errorf("expected custom route to resolve, got:\n%s", out)
	}
	if !strings.Contains(out, "/pricing      awareness") {
		t.Errorf("expected unknown route to fall back to awareness, got:\n%s", out)
	}
}

func TestAttributionCommand(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, time.Now())

	out, err := runCLI(t, db, "attribution", "v1", "--session", "s1")
	if err != nil {
		t.Fatalf("attribution: %v", err)
	}

	var got pipeline.Attribution
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	touch := &attribution.Params{Source: "google", Campaign: "spring"}
	want := pipeline.Attribution{FirstTouch: touch, LastTouch: touch, Current: touch}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("attribution mismatch (-want +got):\n%s", diff)
	}
}

func TestAttributionCommand_VisitorOnly(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, time.Now())

	out, err := runCLI(t, db, "attribution", "v1")
	if err != nil {
		t.Fatalf("attribution: %v", err)
	}

	var got pipeline.Attribution
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	want := pipeline.Attribution{FirstTouch: &attribution.Params{Source: "google", Campaign: "spring"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("attribution mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionsCommand(t *testing.T) {
	db := newTestDB(t)

	out, err := runCLI(t, db, "sessions")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.Contains(out, "No sessions yet.") {
		t.Errorf("expected empty message, got:\n%s", out)
	}

	seedSession(t, db, time.Now())
	out, err = runCLI(t, db, "sessions")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got:\n%s", out)
	}
	fields := strings.Fields(lines[1])
	if fields[0] != "s1" || fields[1] != "v1" || fields[2] != "intent" || fields[3] != "2" {
		t.Errorf("unexpected row %q", lines[1])
	}
}

func TestExportCommand_CSV(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, time.Now())

	out, err := runCLI(t, db, "export", "s1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got:\n%s", out)
	}
	if lines[0] != "timestamp,stage,path" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ",awareness,/") || !strings.HasSuffix(lines[2], ",intent,/pricing") {
		t.Errorf("unexpected rows:\n%s", out)
	}
}

func TestExportCommand_JSON(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, time.Now())

	out, err := runCLI(t, db, "export", "s1", "--format", "json")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	var got struct {
		Session struct {
			ID        string `json:"id"`
			VisitorID string `json:"visitor_id"`
		} `json:"session"`
		History []struct {
			Stage string `json:"stage"`
			Path  string `json:"path"`
		} `json:"history"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if got.Session.ID != "s1" || got.Session.VisitorID != "v1" {
		t.Errorf("unexpected session %+v", got.Session)
	}
	if len(got.History) != 2 || got.History[1].Stage != "intent" {
		t.Errorf("unexpected history %+v", got.History)
	}
}

func TestExportCommand_Errors(t *testing.T) {
	db := newTestDB(t)

	if _, err := runCLI(t, db, "export", "missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
	if _, err := runCLI(t, db, "export", "s1", "--format", "xml"); err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("expected invalid format error, got %v", err)
	}
}

func TestSweepCommand(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, time.Now().Add(-2*time.Hour))

	out, err := runCLI(t, db, "sweep", "--idle", "1h")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.Contains(out, "Ended 1 idle session(s).") {
		t.Errorf("unexpected output %q", out)
	}

	// First touch outlives the session.
	out, err = runCLI(t, db, "attribution", "v1")
	if err != nil {
		t.Fatalf("attribution: %v", err)
	}
	if !strings.Contains(out, `"utm_source": "google"`) {
		t.Errorf("expected first touch to survive the sweep, got:\n%s", out)
	}
}

func TestTokenCommand(t *testing.T) {
	db := newTestDB(t)

	if _, err := runCLI(t, db, "token"); err == nil || !strings.Contains(err.Error(), "no server running") {
		t.Errorf("expected no server error, got %v", err)
	}

	tokenFile := filepath.Join(filepath.Dir(db), ".fg-token")
	if err := os.WriteFile(tokenFile, []byte("abc123\n"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	out, err := runCLI(t, db, "token")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if !strings.Contains(out, "http://localhost:8080/admin/sessions?token=abc123") {
		t.Errorf("unexpected output %q", out)
	}

	t.Setenv("FG_SERVER_URL", "https://fg.example.com/")
	out, err = runCLI(t, db, "token")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if !strings.Contains(out, "https://fg.example.com/admin/sessions?token=abc123") {
		t.Errorf("expected public URL, got %q", out)
	}
}

func TestSnippetCommand(t *testing.T) {
	db := newTestDB(t)

	out, err := runCLI(t, db, "snippet", "--framework", "html", "--server-url", "http://localhost:9000", "--conversion", "demo")
	if err != nil {
		t.Fatalf("snippet: %v", err)
	}
	for _, want := range []string{"funnel-goat.html", `src="http://localhost:9000/fg.js"`, "conversion('demo')"} {
		if !strings.Contains(out, want) {
			t.Errorf("snippet output missing %q:\n%s", want, out)
		}
	}
}
