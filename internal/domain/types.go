// Package domain defines the data model shared by the detection and
// verification pipeline: evidence, candidates, confirmed servers, and the
// closed enumerations that describe them.
package domain

import (
	"encoding/json"
	"fmt"
)

// TransportType identifies the wire transport used to speak MCP to a server.
type TransportType int

const (
	TransportUnknown TransportType = iota
	TransportStdio
	TransportHTTP
	TransportSSE
)

// String returns the lowercase name used in reports and config files.
func (t TransportType) String() string {
	switch t {
	case TransportStdio:
		return "stdio"
	case TransportHTTP:
		return "http"
	case TransportSSE:
		return "sse"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the transport as its string name.
func (t TransportType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts the string names produced by MarshalJSON.
func (t *TransportType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "stdio":
		*t = TransportStdio
	case "http":
		*t = TransportHTTP
	case "sse":
		*t = TransportSSE
	case "unknown", "":
		*t = TransportUnknown
	default:
		return fmt.Errorf("unknown transport type %q", s)
	}
	return nil
}

// DockerContainer carries the container metadata used by the container
// discovery source. Entrypoint and args come from `docker inspect`.
type DockerContainer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	Command string `json:"command"`

	EntrypointPath string   `json:"entrypoint_path,omitempty"`
	EntrypointArgs []string `json:"entrypoint_args,omitempty"`

	Labels map[string]string `json:"labels,omitempty"`
	Env    map[string]string `json:"env,omitempty"`
}

// KubernetesPod is declared for config parity with container candidates.
// No discovery source currently populates it; reporters treat it as
// informational only.
type KubernetesPod struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace"`
	PodIP       string            `json:"pod_ip,omitempty"`
	Containers  []string          `json:"containers,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// NetworkListener is one listening socket reported by the platform adapter.
type NetworkListener struct {
	PID         int    `json:"pid"`
	Address     string `json:"address"`
	Port        int    `json:"port"`
	Protocol    string `json:"protocol"` // "tcp" or "udp"
	ProcessName string `json:"process_name,omitempty"`
}
