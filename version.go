package govern

import (
	"fmt"
	"runtime"
)

// build metadata, overridden via -ldflags at release time
var (
	CurrentCommit  = ""
	CurrentBranch  = ""
	CurrentVersion = "0.1.0"
	BuildDate      = ""
	Platform       = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	GoVersion      = runtime.Version()
)
