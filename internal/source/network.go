package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/kholcomb/Kyros/internal/domain"
	"github.com/kholcomb/Kyros/internal/platform"
)

// Listener evidence confidence by protocol. MCP speaks stdio or HTTP/SSE
// over TCP; a UDP listener is almost never an MCP server.
const (
	tcpListenerConfidence = 0.10
	udpListenerConfidence = 0.05
)

// NetworkSource turns every listening socket into a low-confidence HTTP
// candidate. Listeners alone never justify active testing; the evidence is
// Weak so the scorer keeps bare listeners under the testing threshold.
type NetworkSource struct {
	logger  hclog.Logger
	adapter platform.Adapter
}

func NewNetworkSource(logger hclog.Logger, adapter platform.Adapter) *NetworkSource {
	return &NetworkSource{
		logger:  logger.Named("source.network"),
		adapter: adapter,
	}
}

func (s *NetworkSource) Name() string { return "network" }

func (s *NetworkSource) Detect(_ context.Context) (Result, error) {
	listeners, err := s.adapter.ListeningSockets()
	if err != nil {
		return Result{}, err
	}

	result := Result{ItemsChecked: len(listeners)}

	for _, listener := range listeners {
		candidate := domain.Candidate{
			PID:           listener.PID,
			Address:       listener.Address,
			Port:          listener.Port,
			URL:           ListenerURL(listener.Address, listener.Port),
			TransportHint: domain.TransportHTTP,
		}

		if listener.PID > 0 {
			candidate.ProcessName = s.adapter.ProcessName(listener.PID)
			candidate.Command = s.adapter.CommandLine(listener.PID)
		}

		confidence := tcpListenerConfidence
		if listener.Protocol == "udp" {
			confidence = udpListenerConfidence
		}

		// Localhost binding is common to many services and adds nothing.
		candidate.AddEvidence(domain.NewEvidenceWithStrength(
			"network_listener",
			fmt.Sprintf("Process listening on %s:%d (%s)", listener.Address, listener.Port, listener.Protocol),
			confidence,
			"",
			domain.StrengthWeak,
		))

		result.Candidates = append(result.Candidates, candidate)
	}

	return result, nil
}

// ListenerURL builds the probe URL for a listener: wildcard binds map to
// loopback and IPv6 hosts are bracketed.
func ListenerURL(address string, port int) string {
	host := address
	if host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}
