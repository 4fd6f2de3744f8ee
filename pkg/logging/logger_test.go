package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// decodeLines parses one JSON object per log line.
func decodeLines(t *testing.T, s string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line is not JSON: %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Output != os.Stderr {
		t.Error("Expected default output to be stderr")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSetup_QueryFields(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf, RunID: "run-7"})

	logger := NewLogger("coordinator")
	logger.Info().
		Str("region", "榕江县").
		Str("category", "停车场").
		Int("records", 27).
		Msg("Query finished")
	logger.Debug().Int("page", 2).Msg("Page fetched")

	lines := decodeLines(t, buf.String())
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 (debug filtered): %q", len(lines), buf.String())
	}
	line := lines[0]
	want := map[string]any{
		"level":     "info",
		"run_id":    "run-7",
		"component": "coordinator",
		"region":    "榕江县",
		"category":  "停车场",
		"records":   float64(27),
		"message":   "Query finished",
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("field %s = %v, want %v", k, line[k], v)
		}
	}
	if _, ok := line["time"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestSetup_NoRunID(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Output: buf})
	logger.Info().Msg("Harvest started")

	line := decodeLines(t, buf.String())[0]
	if _, ok := line["run_id"]; ok {
		t.Errorf("run_id set without a run: %v", line)
	}
}

func TestSetup_WarnFiltersQueryProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("scheduler")
	logger.Info().Msg("Query finished")
	logger.Warn().Int("position", 3).Msg("Skipping malformed POI")
	logger.Error().Msg("Result could not be stored")

	out := buf.String()
	if strings.Contains(out, "Query finished") {
		t.Error("info line should be filtered at warn level")
	}
	if n := len(decodeLines(t, out)); n != 2 {
		t.Errorf("got %d lines, want 2: %q", n, out)
	}
}

func TestSetup_FileSinkGetsJSON(t *testing.T) {
	console := &bytes.Buffer{}
	file := &bytes.Buffer{}

	Setup(Config{
		Level:  LevelInfo,
		Pretty: true,
		Output: console,
		File:   file,
		RunID:  "run-42",
	})
	NewLogger("harvest").Info().Str("region", "榕江县").Msg("Query finished")

	if !strings.Contains(console.String(), "Query finished") {
		t.Errorf("console output missing message: %q", console.String())
	}
	if strings.HasPrefix(strings.TrimSpace(console.String()), "{") {
		t.Errorf("console output should be human-readable: %q", console.String())
	}

	line := decodeLines(t, file.String())[0]
	if line["run_id"] != "run-42" || line["component"] != "harvest" || line["region"] != "榕江县" {
		t.Errorf("file line missing harvest fields: %v", line)
	}
}

// Workers share one logger; every line must arrive whole.
func TestSetup_ConcurrentWriters(t *testing.T) {
	console := &bytes.Buffer{}
	file := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Output: console, File: file, RunID: "run-1"})

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				logger.Info().Int("worker", w).Int("page", i).Msg("Query finished")
			}
		}(w)
	}
	wg.Wait()

	for name, buf := range map[string]*bytes.Buffer{"console": console, "file": file} {
		if n := len(decodeLines(t, buf.String())); n != workers*perWorker {
			t.Errorf("%s: got %d lines, want %d", name, n, workers*perWorker)
		}
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "harvest.log")

	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	Setup(Config{Level: LevelInfo, Output: &bytes.Buffer{}, File: f, RunID: "first"}).
		Info().Msg("Harvest started")
	f.Close()

	f, err = OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	Setup(Config{Level: LevelInfo, Output: &bytes.Buffer{}, File: f, RunID: "second"}).
		Info().Msg("Harvest started")
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := decodeLines(t, string(data))
	if len(lines) != 2 || lines[0]["run_id"] != "first" || lines[1]["run_id"] != "second" {
		t.Errorf("log file = %q, want both runs appended", data)
	}
}
