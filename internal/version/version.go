package version

import (
	"fmt"
	"runtime"
)

// Set through -ldflags at release time.
var (
	Version   string
	GitCommit string
)

const devVersion = "dev"

type Info struct {
	Version  string
	Revision string
	Go       string
	Platform string
}

func Get() Info {
	v := Version
	if len(v) == 0 {
		v = devVersion
	}
	return Info{
		Version:  v,
		Revision: GitCommit,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	if i.Revision == "" {
		return fmt.Sprintf("tether %s (%s, %s)", i.Version, i.Go, i.Platform)
	}
	return fmt.Sprintf("tether %s-%s (%s, %s)", i.Version, i.Revision, i.Go, i.Platform)
}
