package diag

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"doze/internal/logging"
	"doze/internal/statestore"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError)
}

func testStore(t *testing.T) statestore.Store {
	t.Helper()
	store, err := statestore.NewFileStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return store
}

func TestCollectStateBundlesRecords(t *testing.T) {
	store := testStore(t)
	if err := store.SaveSnapshot(statestore.Snapshot{
		CheckedAt: time.Now(),
		Verdict:   "idle",
		Decision:  "tracking",
	}); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if err := store.SaveWakeRecord(statestore.WakeRecord{
		WokeAt:       time.Now(),
		TransitionID: "t-1",
	}); err != nil {
		t.Fatalf("SaveWakeRecord() error = %v", err)
	}

	cfg := NewConfig("test")
	collector := NewCollector(cfg, store, testLogger())

	files := collector.CollectState()

	if _, ok := files["state/snapshot.json"]; !ok {
		t.Error("snapshot missing from bundle")
	}
	if _, ok := files["state/last_wake.json"]; !ok {
		t.Error("wake record missing from bundle")
	}
	if _, ok := files["state/idle_tracking.json"]; ok {
		t.Error("absent idle tracking should not produce a bundle entry")
	}

	var snapshot statestore.Snapshot
	if err := json.Unmarshal(files["state/snapshot.json"], &snapshot); err != nil {
		t.Fatalf("bundled snapshot is not valid JSON: %v", err)
	}
	if snapshot.Verdict != "idle" {
		t.Errorf("bundled verdict = %q, want %q", snapshot.Verdict, "idle")
	}
}

func TestCollectStateWithoutStore(t *testing.T) {
	cfg := NewConfig("test")
	collector := NewCollector(cfg, nil, testLogger())

	if files := collector.CollectState(); len(files) != 0 {
		t.Errorf("CollectState() without a store = %d files, want 0", len(files))
	}
}

func TestCollectConfigRedacts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "workload:\n  name: workstation\nguest:\n  password: swordfish\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := NewConfig("test")
	cfg.ConfigPaths = []string{path, filepath.Join(dir, "missing.yaml"), ""}
	collector := NewCollector(cfg, nil, testLogger())

	files := collector.CollectConfig()

	if len(files) != 1 {
		t.Fatalf("CollectConfig() = %d files, want 1", len(files))
	}
	bundled := string(files["config/config.yaml"])
	if strings.Contains(bundled, "swordfish") {
		t.Error("secret survived into the bundle")
	}
	if !strings.Contains(bundled, "name: workstation") {
		t.Error("non-sensitive config was modified")
	}
}

func TestCollectLogsTailsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doze.log")
	if err := os.WriteFile(path, []byte("line one\nline two\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := NewConfig("test")
	cfg.LogFile = path
	collector := NewCollector(cfg, nil, testLogger())

	files := collector.CollectLogs()

	got := string(files["logs/doze.log"])
	if got != "line one\nline two\n" {
		t.Errorf("bundled log = %q, want full content", got)
	}
}

func TestCollectLogsSkippedWithoutFile(t *testing.T) {
	cfg := NewConfig("test")
	cfg.LogFile = ""
	collector := NewCollector(cfg, nil, testLogger())

	if files := collector.CollectLogs(); len(files) != 0 {
		t.Errorf("CollectLogs() without a log file = %d files, want 0", len(files))
	}
}

func TestCollectSystemInfo(t *testing.T) {
	cfg := NewConfig("1.2.3")
	cfg.Domain = "workstation"
	collector := NewCollector(cfg, nil, testLogger())

	files := collector.CollectSystemInfo()

	var info map[string]interface{}
	if err := json.Unmarshal(files["system_info.json"], &info); err != nil {
		t.Fatalf("system info is not valid JSON: %v", err)
	}
	if info["doze_version"] != "1.2.3" {
		t.Errorf("doze_version = %v, want %q", info["doze_version"], "1.2.3")
	}
	if info["domain"] != "workstation" {
		t.Errorf("domain = %v, want %q", info["domain"], "workstation")
	}
}

func TestReadTailLimitsLargeFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.log")
	if err := os.WriteFile(path, []byte("0123456789"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := readTail(path, 4)
	if err != nil {
		t.Fatalf("readTail() error = %v", err)
	}
	if string(got) != "6789" {
		t.Errorf("readTail() = %q, want %q", got, "6789")
	}
}
