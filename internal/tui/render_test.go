package tui

import "testing"

func TestPadRight(t *testing.T) {
	if got := padRight("ab", 5); got != "ab   " {
		t.Fatalf("padRight = %q", got)
	}
	if got := padRight("abcdef", 3); got != "abcdef" {
		t.Fatalf("padRight should not shorten, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello world", 5); got != "hell…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("hi", 5); got != "hi" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("hi", 0); got != "" {
		t.Fatalf("truncate = %q", got)
	}
}

func TestFormatCount(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{42, "42"},
		{9999, "9999"},
		{10_000, "10.0K"},
		{1_500_000, "1.5M"},
		{2_000_000_000, "2.0B"},
	}
	for _, tc := range cases {
		if got := formatCount(tc.n); got != tc.want {
			t.Errorf("formatCount(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	if got := formatBytes(512); got != "512 B" {
		t.Fatalf("formatBytes = %q", got)
	}
	if got := formatBytes(3 << 20); got != "3.0 MiB" {
		t.Fatalf("formatBytes = %q", got)
	}
}

func TestPathTail(t *testing.T) {
	if got := pathTail("s3://bucket/db/events/data/f1.parquet", 2); got != ".../data/f1.parquet" {
		t.Fatalf("pathTail = %q", got)
	}
	if got := pathTail("f1.parquet", 2); got != "f1.parquet" {
		t.Fatalf("pathTail = %q", got)
	}
}

func TestWindow(t *testing.T) {
	if got := window(10, 5, 8); got != 3 {
		t.Fatalf("window = %d", got)
	}
	if got := window(2, 5, 3); got != 0 {
		t.Fatalf("window = %d", got)
	}
	if got := window(-4, 5, 100); got != 0 {
		t.Fatalf("window = %d", got)
	}
}
