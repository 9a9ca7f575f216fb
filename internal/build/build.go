// Package build provides the build information linked into the binary at release time.
package build

var (
	// ProjectName is used as the prometheus namespace and the otel service name.
	ProjectName = "vecinotech"

	// Version is the release version, set through -ldflags.
	Version = "dev"

	// Commit is the git sha of the build.
	Commit = "none"

	// Date is the build date.
	Date = "unknown"
)

// MinimumSupportedDatastoreSchemaRevision is the lowest migration version the
// server can run against.
const MinimumSupportedDatastoreSchemaRevision = 1
