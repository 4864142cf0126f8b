package server

import (
	"testing"

	"github.com/plex-offload/plex-offload/internal/config"
)

func newTestTargets(t *testing.T, origin, root, gateway string) *Targets {
	t.Helper()
	targets, err := NewTargets(&config.Config{
		OriginURL:   origin,
		LibraryPath: root,
		GatewayURL:  gateway,
	})
	if err != nil {
		t.Fatalf("NewTargets failed: %v", err)
	}
	return targets
}

func TestNewTargetsTrimsGatewaySlash(t *testing.T) {
	targets := newTestTargets(t, "http://plex.local:32400", "/data", "http://rclone.local/media///")
	if targets.Gateway != "http://rclone.local/media" {
		t.Fatalf("unexpected gateway: %s", targets.Gateway)
	}
	if targets.Origin.Host != "plex.local:32400" {
		t.Fatalf("unexpected origin host: %s", targets.Origin.Host)
	}
}

func TestNewTargetsRejectsNil(t *testing.T) {
	if _, err := NewTargets(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := NewTargets(&config.Config{OriginURL: "/relative"}); err == nil {
		t.Fatalf("expected error for origin without host")
	}
}

func TestOriginURLReplacesPathAndQuery(t *testing.T) {
	targets := newTestTargets(t, "http://plex.local:32400/ignored?x=1", "/data", "http://rclone.local")

	got := targets.OriginURL("/library/metadata/5/children", "X-Plex-Token=abc")
	if got.String() != "http://plex.local:32400/library/metadata/5/children?X-Plex-Token=abc" {
		t.Fatalf("unexpected origin url: %s", got)
	}

	escaped := targets.OriginURL("/library/parts/1/My%20File.mkv", "")
	if escaped.String() != "http://plex.local:32400/library/parts/1/My%20File.mkv" {
		t.Fatalf("escaped path not preserved: %s", escaped)
	}

	if targets.Origin.Path != "/ignored" {
		t.Fatalf("base origin must not be mutated: %s", targets.Origin.Path)
	}
}

func TestGatewayURL(t *testing.T) {
	targets := newTestTargets(t, "http://plex.local", "/data", "http://rclone.local/")

	cases := []struct {
		file string
		want string
		ok   bool
	}{
		{"/data/movies/a.mkv", "http://rclone.local/movies/a.mkv", true},
		{"/data//movies/a.mkv", "http://rclone.local/movies/a.mkv", true},
		{"/data/tv/Show (2020)/S01 #1.mkv", "http://rclone.local/tv/Show%20%282020%29/S01%20%231.mkv", true},
		{"/media/movies/a.mkv", "", false},
		{"data/movies/a.mkv", "", false},
	}
	for _, tc := range cases {
		got, ok := targets.GatewayURL(tc.file)
		if ok != tc.ok {
			t.Fatalf("%s: expected ok=%v", tc.file, tc.ok)
		}
		if ok && got.String() != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.file, tc.want, got)
		}
	}
}
