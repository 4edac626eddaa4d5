package version

import (
	"runtime/debug"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	t.Parallel()

	var info Info
	fromBuildInfo(&info, &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	if got, want := info.String(), "v0.3.1 (0123456789ab-dirty)"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Fatalf("BuildTime = %q", info.BuildTime)
	}
}

func TestLdflagsWin(t *testing.T) {
	t.Parallel()

	info := Info{Version: "1.0.0", Commit: "abc"}
	fromBuildInfo(&info, &debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "def"}},
	})
	if info.Version != "1.0.0" || info.Commit != "abc" {
		t.Fatalf("unexpected %+v", info)
	}
}
