package buildinfo

import (
	"runtime/debug"
	"testing"
)

func fakeBuildInfo(t *testing.T, info *debug.BuildInfo) {
	t.Helper()
	prev := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	t.Cleanup(func() { readBuildInfo = prev })
}

func TestVersionWithTags(t *testing.T) {
	tests := []struct {
		name   string
		linked string
		info   *debug.BuildInfo
		want   string
	}{
		{name: "no build info", want: "dev"},
		{
			name: "module version",
			info: &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}},
			want: "v1.2.3",
		},
		{
			name:   "linked version wins",
			linked: "v9.0.0",
			info:   &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}},
			want:   "v9.0.0",
		},
		{
			name: "devel with revision and tags",
			info: &debug.BuildInfo{
				Main: debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{
					{Key: "-tags", Value: "netgo"},
					{Key: "vcs.revision", Value: "0123456789abcdef0123"},
					{Key: "vcs.modified", Value: "true"},
				},
			},
			want: "dev (0123456789ab-dirty) (tags: netgo)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeBuildInfo(t, tt.info)
			prev := version
			version = tt.linked
			t.Cleanup(func() { version = prev })

			if got := VersionWithTags(); got != tt.want {
				t.Fatalf("VersionWithTags() = %q, want %q", got, tt.want)
			}
		})
	}
}
