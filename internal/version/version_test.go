package version

import (
	"github.com/stretchr/testify/assert"
	"runtime"
	"testing"
)

func TestGetDefaultsToDev(t *testing.T) {
	info := Get()
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, runtime.Version(), info.Go)
	assert.Equal(t, "tether dev ("+runtime.Version()+", "+runtime.GOOS+"/"+runtime.GOARCH+")", info.String())
}

func TestInfoWithRevision(t *testing.T) {
	info := Info{Version: "v0.2.0", Revision: "abc1234", Go: "go1.18", Platform: "linux/amd64"}
	assert.Equal(t, "tether v0.2.0-abc1234 (go1.18, linux/amd64)", info.String())
}
