// Package platformtest provides in-memory fakes of the platform adapter and
// child process for source and probe tests.
package platformtest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kholcomb/Kyros/internal/domain"
	kerr "github.com/kholcomb/Kyros/internal/errors"
	"github.com/kholcomb/Kyros/internal/platform"
)

// Adapter is a scriptable platform.Adapter backed by maps. The zero value is
// usable: every lookup misses and every listing is empty.
type Adapter struct {
	// Filesystem.
	Files map[string]string   // path -> file content (JSON for ReadJSONFile)
	Dirs  map[string][]string // path -> directory entries

	// Processes.
	PIDs         []int
	Names        map[int]string
	Commands     map[int]string
	Parents      map[int]int
	Environs     map[int]map[string]string
	Bidirectional map[int]bool
	ProcessesErr error

	// Sockets.
	Listeners    []domain.NetworkListener
	ListenersErr error

	// Containers.
	Containers    []domain.DockerContainer
	ContainersErr error
	MCPServerIDs  []string

	// Spawning. When nil, Spawn fails.
	SpawnFunc func(ctx context.Context, command string) (platform.Process, error)

	mu       sync.Mutex
	spawned  []string
}

var _ platform.Adapter = (*Adapter)(nil)

func (a *Adapter) FileExists(path string) bool {
	if _, ok := a.Files[path]; ok {
		return true
	}
	_, ok := a.Dirs[path]
	return ok
}

// ExpandPath substitutes a fixed "~" marker so tests can use portable paths.
func (a *Adapter) ExpandPath(path string) string {
	return strings.Replace(path, "~", "/home/test", 1)
}

func (a *Adapter) ReadJSONFile(path string, v any) error {
	content, ok := a.Files[path]
	if !ok {
		return fmt.Errorf("no such file: %s", path)
	}
	return json.Unmarshal([]byte(content), v)
}

func (a *Adapter) ListDirectory(path string) ([]string, error) {
	entries, ok := a.Dirs[path]
	if !ok {
		return nil, fmt.Errorf("no such directory: %s", path)
	}
	return entries, nil
}

func (a *Adapter) Processes() ([]int, error) {
	if a.ProcessesErr != nil {
		return nil, a.ProcessesErr
	}
	return a.PIDs, nil
}

func (a *Adapter) ProcessName(pid int) string { return a.Names[pid] }
func (a *Adapter) CommandLine(pid int) string { return a.Commands[pid] }
func (a *Adapter) ParentPID(pid int) int      { return a.Parents[pid] }

func (a *Adapter) Environment(pid int) map[string]string { return a.Environs[pid] }

func (a *Adapter) HasBidirectionalPipes(pid int) bool { return a.Bidirectional[pid] }

func (a *Adapter) ListeningSockets() ([]domain.NetworkListener, error) {
	if a.ListenersErr != nil {
		return nil, a.ListenersErr
	}
	return a.Listeners, nil
}

func (a *Adapter) Spawn(ctx context.Context, command string) (platform.Process, error) {
	a.mu.Lock()
	a.spawned = append(a.spawned, command)
	a.mu.Unlock()

	if a.SpawnFunc == nil {
		return nil, fmt.Errorf("spawn not configured")
	}
	return a.SpawnFunc(ctx, command)
}

// SpawnedCommands returns every command handed to Spawn, in order.
func (a *Adapter) SpawnedCommands() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.spawned...)
}

func (a *Adapter) DockerContainers(context.Context) ([]domain.DockerContainer, error) {
	if a.ContainersErr != nil {
		return nil, a.ContainersErr
	}
	return a.Containers, nil
}

func (a *Adapter) DockerMCPServerIDs(context.Context) ([]string, error) {
	return a.MCPServerIDs, nil
}

// Process is a scripted platform.Process. Each ReadStdoutLine call pops the
// next line; an exhausted script times out, mimicking a silent child.
type Process struct {
	StdoutLines []string
	StderrLines []string
	WriteErr    error
	ReadErr     error

	mu         sync.Mutex
	stdinData  strings.Builder
	stdoutPos  int
	stderrPos  int
	terminated bool
	exited     bool
}

var _ platform.Process = (*Process)(nil)

func (p *Process) WriteStdin(data string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.WriteErr != nil {
		return p.WriteErr
	}
	p.stdinData.WriteString(data)
	return nil
}

// StdinData returns everything written to the fake child's stdin.
func (p *Process) StdinData() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdinData.String()
}

func (p *Process) ReadStdoutLine(timeout time.Duration) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ReadErr != nil {
		return "", p.ReadErr
	}
	if p.stdoutPos >= len(p.StdoutLines) {
		return "", kerr.ErrProbeTimeout
	}
	line := p.StdoutLines[p.stdoutPos]
	p.stdoutPos++
	return line, nil
}

func (p *Process) ReadStderrLine(timeout time.Duration) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stderrPos >= len(p.StderrLines) {
		return "", kerr.ErrProbeTimeout
	}
	line := p.StderrLines[p.stderrPos]
	p.stderrPos++
	return line, nil
}

func (p *Process) Terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated = true
	p.exited = true
}

// Terminated reports whether Terminate was called.
func (p *Process) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

func (p *Process) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.exited
}

func (p *Process) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.exited {
		return 0, false
	}
	return 0, true
}

func (p *Process) PID() int { return 999 }
