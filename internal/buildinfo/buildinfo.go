package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// version may be set with -ldflags "-X .../buildinfo.version=v1.2.3" for
// builds that do not carry module information.
var version string

var readBuildInfo = debug.ReadBuildInfo

// Version returns the linked version, then the module version, or "dev".
func Version() string {
	if version != "" {
		return version
	}
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return "dev"
	}
	v := info.Main.Version
	if v == "" || v == "(devel)" {
		return "dev"
	}
	return v
}

func setting(key string) string {
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// Tags returns the build tags recorded at compile time.
func Tags() string { return setting("-tags") }

// Revision returns the abbreviated VCS revision, with a "-dirty" suffix when
// the tree had local changes.
func Revision() string {
	rev := setting("vcs.revision")
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && setting("vcs.modified") == "true" {
		rev += "-dirty"
	}
	return rev
}

// VersionWithTags returns the version followed by the revision and tags when
// they are known.
func VersionWithTags() string {
	s := Version()
	if rev := Revision(); rev != "" && s == "dev" {
		s = fmt.Sprintf("%s (%s)", s, rev)
	}
	if tags := Tags(); tags != "" {
		s = fmt.Sprintf("%s (tags: %s)", s, tags)
	}
	return s
}
