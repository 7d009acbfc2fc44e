package buildinfo

// Set at build time, for example:
//
//	go build -ldflags "-X github.com/m3rciful/deskbot/core/buildinfo.Version=v0.3.0 \
//	  -X github.com/m3rciful/deskbot/core/buildinfo.Commit=$(git rev-parse --short HEAD)"
var (
	// Version is the release tag of the binary.
	Version = "dev"
	// Commit is the VCS revision the binary was built from.
	Commit = "local"
	// Date is the build timestamp in RFC3339.
	Date = ""
)
