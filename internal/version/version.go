// Package version holds build metadata, set at link time:
//
//	go build -ldflags "-X github.com/doeshing/q/internal/version.Version=v0.3.0 \
//	  -X github.com/doeshing/q/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)
