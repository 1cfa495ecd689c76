package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenEmptyPathIsDisabled(t *testing.T) {
	log, f, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f != nil {
		t.Fatal("no file expected")
	}
	// must not panic
	log.Info().Msg("dropped")
}

func TestOpenWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "floe.log")
	log, f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	log.Info().Str("table", "db.events").Msg("opened")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"table":"db.events"`) {
		t.Fatalf("log contents = %s", raw)
	}
}
