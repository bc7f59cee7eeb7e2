package cli

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LoreClaw/LoreClaw/internal/config"
	"github.com/LoreClaw/LoreClaw/internal/knowledge"
	"github.com/LoreClaw/LoreClaw/internal/timeline"
)

func TestPreview(t *testing.T) {
	if got := preview("short text", 400); got != "short text" {
		t.Fatalf("short text altered: %q", got)
	}
	long := strings.Repeat("é", 500)
	got := preview(long, 400)
	if runes := []rune(got); len(runes) != 401 || !strings.HasSuffix(got, "…") {
		t.Fatalf("expected 400 runes plus ellipsis, got %d runes", len([]rune(got)))
	}
	if got := preview("  padded  ", 400); got != "padded" {
		t.Fatalf("expected trimmed preview, got %q", got)
	}
}

func TestKnowledgeRefreshMirrorsSource(t *testing.T) {
	tmpDir := useTempHome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><head><title>Acme</title></head><body><h1>Acme Capital</h1><p>Opening hours 9 to 5.</p></body></html>")
	}))
	defer srv.Close()

	cfgDir := filepath.Join(tmpDir, config.ConfigDir)
	if err := os.MkdirAll(cfgDir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgJSON := fmt.Sprintf(`{"knowledge":{"sourceUrl":%q}}`, srv.URL)
	if err := os.WriteFile(filepath.Join(cfgDir, config.ConfigFile), []byte(cfgJSON), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := runRootCommand(t, "knowledge", "refresh"); err != nil {
		t.Fatalf("knowledge refresh failed: %v", err)
	}

	history, err := timeline.NewService(filepath.Join(cfgDir, "timeline.db"))
	if err != nil {
		t.Fatalf("open timeline: %v", err)
	}
	defer history.Close()

	snap, ok := knowledge.LoadMirrored(history)
	if !ok {
		t.Fatal("nothing mirrored after refresh")
	}
	if !strings.Contains(snap.Content, "Opening hours 9 to 5.") {
		t.Fatalf("mirrored content missing page text: %q", snap.Content)
	}
	if snap.FetchedAt.IsZero() {
		t.Fatal("mirrored snapshot has no fetch time")
	}

	events, err := history.Events(timeline.FilterArgs{Kind: timeline.EventRefreshOK})
	if err != nil || len(events) != 1 {
		t.Fatalf("expected one refresh event, got %d (err %v)", len(events), err)
	}
	if events[0].Channel != "cli" {
		t.Fatalf("unexpected event channel %q", events[0].Channel)
	}
}

func TestKnowledgeRefreshFailureIsRecorded(t *testing.T) {
	tmpDir := useTempHome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfgDir := filepath.Join(tmpDir, config.ConfigDir)
	if err := os.MkdirAll(cfgDir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgJSON := fmt.Sprintf(`{"knowledge":{"sourceUrl":%q}}`, srv.URL)
	if err := os.WriteFile(filepath.Join(cfgDir, config.ConfigFile), []byte(cfgJSON), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := runRootCommand(t, "knowledge", "refresh"); err == nil {
		t.Fatal("expected refresh failure for 503 source")
	}

	history, err := timeline.NewService(filepath.Join(cfgDir, "timeline.db"))
	if err != nil {
		t.Fatalf("open timeline: %v", err)
	}
	defer history.Close()

	events, err := history.Events(timeline.FilterArgs{Kind: timeline.EventRefreshFailed})
	if err != nil || len(events) != 1 {
		t.Fatalf("expected one failure event, got %d (err %v)", len(events), err)
	}
}

func TestKnowledgeShowHandlesEmptyMirror(t *testing.T) {
	useTempHome(t)
	if _, err := runRootCommand(t, "knowledge", "show"); err != nil {
		t.Fatalf("knowledge show failed on empty mirror: %v", err)
	}
}
