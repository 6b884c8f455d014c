package platform

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kholcomb/Kyros/internal/domain"
)

// dockerPSLine is the per-container JSON emitted by `docker ps --format`.
type dockerPSLine struct {
	ID      string `json:"ID"`
	Names   string `json:"Names"`
	Image   string `json:"Image"`
	Command string `json:"Command"`
}

// dockerInspect is the subset of `docker inspect` output the container
// source consumes.
type dockerInspect struct {
	Path   string   `json:"Path"`
	Args   []string `json:"Args"`
	Config struct {
		Labels map[string]string `json:"Labels"`
		Env    []string          `json:"Env"`
	} `json:"Config"`
}

// DockerContainers lists running containers through the docker CLI. The
// `docker mcp` plugin used by DockerMCPServerIDs has no API equivalent, so
// both calls go through the CLI for consistency.
func (a *linuxAdapter) DockerContainers(ctx context.Context) ([]domain.DockerContainer, error) {
	out, err := a.runDocker(ctx, "ps", "--format", "{{json .}}")
	if err != nil {
		return nil, fmt.Errorf("docker ps failed: %w", err)
	}

	var containers []domain.DockerContainer
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var ps dockerPSLine
		if err := json.Unmarshal([]byte(line), &ps); err != nil {
			continue
		}

		container := domain.DockerContainer{
			ID:      ps.ID,
			Name:    ps.Names,
			Image:   ps.Image,
			Command: strings.Trim(ps.Command, `"`),
		}
		a.inspectContainer(ctx, &container)
		containers = append(containers, container)
	}
	return containers, nil
}

// inspectContainer fills entrypoint, labels, and environment from
// `docker inspect`. Inspection failures leave the ps-level fields intact.
func (a *linuxAdapter) inspectContainer(ctx context.Context, container *domain.DockerContainer) {
	out, err := a.runDocker(ctx, "inspect", "--format", "{{json .}}", container.ID)
	if err != nil {
		return
	}

	var inspect dockerInspect
	if err := json.Unmarshal(bytes.TrimSpace(out), &inspect); err != nil {
		return
	}

	container.EntrypointPath = inspect.Path
	container.EntrypointArgs = inspect.Args
	container.Labels = inspect.Config.Labels

	if len(inspect.Config.Env) > 0 {
		container.Env = make(map[string]string, len(inspect.Config.Env))
		for _, entry := range inspect.Config.Env {
			if key, value, found := strings.Cut(entry, "="); found {
				container.Env[key] = value
			}
		}
	}
}

// DockerMCPServerIDs returns the server names registered with the
// `docker mcp` CLI plugin. A missing plugin is not an error; it simply
// means no servers are registered that way.
func (a *linuxAdapter) DockerMCPServerIDs(ctx context.Context) ([]string, error) {
	out, err := a.runDocker(ctx, "mcp", "server", "list")
	if err != nil {
		return nil, nil
	}

	var ids []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			ids = append(ids, line)
		}
	}
	return ids, nil
}

func (a *linuxAdapter) runDocker(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, a.dockerPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
