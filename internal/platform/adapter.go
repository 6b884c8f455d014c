// Package platform provides the host-environment adapter the discovery
// sources and probes depend on: process enumeration via procfs, listening
// socket discovery, config file access, child process spawning, and
// container listing through the docker CLI.
package platform

import (
	"context"
	"runtime"
	"time"

	"github.com/kholcomb/Kyros/internal/domain"
	kerr "github.com/kholcomb/Kyros/internal/errors"
)

// Adapter is the scanner's view of the host. Discovery sources share one
// adapter and treat it as read-only; probes use Spawn to obtain exclusively
// owned child processes.
type Adapter interface {
	// Filesystem access for the config source.
	FileExists(path string) bool
	ExpandPath(path string) string
	ReadJSONFile(path string, v any) error
	ListDirectory(path string) ([]string, error)

	// Process introspection for the process source.
	Processes() ([]int, error)
	ProcessName(pid int) string
	CommandLine(pid int) string
	ParentPID(pid int) int
	Environment(pid int) map[string]string
	HasBidirectionalPipes(pid int) bool

	// Socket enumeration for the network source.
	ListeningSockets() ([]domain.NetworkListener, error)

	// Spawn starts command with stdin/stdout/stderr pipes. The returned
	// Process is exclusively owned by the caller, which must Terminate it
	// on every exit path.
	Spawn(ctx context.Context, command string) (Process, error)

	// Container listing for the container source.
	DockerContainers(ctx context.Context) ([]domain.DockerContainer, error)
	DockerMCPServerIDs(ctx context.Context) ([]string, error)
}

// Process is a spawned child with pipe-based stdio. Reads are bounded by the
// supplied timeout; Terminate sends SIGTERM, waits up to a second, then
// SIGKILLs. Terminate is idempotent.
type Process interface {
	WriteStdin(data string) error
	ReadStdoutLine(timeout time.Duration) (string, error)
	ReadStderrLine(timeout time.Duration) (string, error)
	Terminate()
	IsRunning() bool
	ExitCode() (int, bool)
	PID() int
}

// NewAdapter returns the adapter for the current OS.
func NewAdapter() (Adapter, error) {
	switch runtime.GOOS {
	case "linux":
		return newLinuxAdapter(), nil
	default:
		return nil, kerr.ErrUnsupportedPlatform
	}
}
