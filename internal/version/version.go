package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set with -ldflags "-X github.com/oneOoneData/TaxProExchange-sub003/internal/version.Version=v0.1.0".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = ""
	GoVersion = runtime.Version()
)

// Info is the build identity reported by /healthz and the start-up log.
type Info struct {
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
}

// Get returns the linker-provided values, falling back to the VCS stamp the
// go tool embeds when they were not set.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info = fillFromBuildInfo(info, bi.Settings)
	}
	if info.BuildDate == "" {
		info.BuildDate = time.Now().UTC().Format(time.RFC3339)
	}
	return info
}

func fillFromBuildInfo(info Info, settings []debug.BuildSetting) Info {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "none" && s.Value != "" {
				info.Commit = s.Value[:min(len(s.Value), 12)]
			}
		case "vcs.time":
			if info.BuildDate == "" {
				info.BuildDate = s.Value
			}
		}
	}
	return info
}

func (i Info) String() string {
	return fmt.Sprintf("linkcheck %s (commit=%s, built=%s, go=%s)", i.Version, i.Commit, i.BuildDate, i.GoVersion)
}
