package platform

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kholcomb/Kyros/internal/domain"
)

// Socket states from include/net/tcp_states.h.
const (
	tcpListen    = "0A"
	udpUnconnect = "07"
)

// ListeningSockets parses /proc/net/{tcp,tcp6,udp,udp6} for listening
// sockets and resolves owning PIDs through /proc/<pid>/fd socket inodes.
func (a *linuxAdapter) ListeningSockets() ([]domain.NetworkListener, error) {
	inodeToPID := a.socketInodeOwners()

	var listeners []domain.NetworkListener
	tables := []struct {
		file     string
		protocol string
		state    string
	}{
		{"net/tcp", "tcp", tcpListen},
		{"net/tcp6", "tcp", tcpListen},
		{"net/udp", "udp", udpUnconnect},
		{"net/udp6", "udp", udpUnconnect},
	}

	found := false
	for _, table := range tables {
		data, err := os.ReadFile(filepath.Join(a.procRoot, table.file))
		if err != nil {
			continue // table absent (no IPv6 etc.)
		}
		found = true

		for _, line := range strings.Split(string(data), "\n")[1:] {
			fields := strings.Fields(line)
			if len(fields) < 10 || fields[3] != table.state {
				continue
			}

			address, port, err := parseProcNetAddress(fields[1])
			if err != nil {
				continue
			}

			inode := fields[9]
			pid := inodeToPID[inode]

			listener := domain.NetworkListener{
				PID:      pid,
				Address:  address,
				Port:     port,
				Protocol: table.protocol,
			}
			if pid > 0 {
				listener.ProcessName = a.ProcessName(pid)
			}
			listeners = append(listeners, listener)
		}
	}

	if !found {
		return nil, fmt.Errorf("no readable socket tables under %s/net", a.procRoot)
	}
	return listeners, nil
}

// socketInodeOwners maps socket inodes to owning PIDs by scanning fd links.
// Unreadable processes (other users) are skipped.
func (a *linuxAdapter) socketInodeOwners() map[string]int {
	owners := make(map[string]int)

	pids, err := a.Processes()
	if err != nil {
		return owners
	}

	for _, pid := range pids {
		fdDir := a.procPath(pid, "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			target, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if inode, ok := strings.CutPrefix(target, "socket:["); ok {
				inode = strings.TrimSuffix(inode, "]")
				if _, seen := owners[inode]; !seen {
					owners[inode] = pid
				}
			}
		}
	}
	return owners
}

// parseProcNetAddress decodes the "hexaddr:hexport" column of a procfs net
// table. IPv4 addresses are one little-endian 32-bit group; IPv6 addresses
// are four.
func parseProcNetAddress(field string) (string, int, error) {
	addrHex, portHex, found := strings.Cut(field, ":")
	if !found {
		return "", 0, fmt.Errorf("malformed address field %q", field)
	}

	port, err := strconv.ParseInt(portHex, 16, 32)
	if err != nil {
		return "", 0, fmt.Errorf("malformed port %q: %w", portHex, err)
	}

	raw, err := hex.DecodeString(addrHex)
	if err != nil {
		return "", 0, fmt.Errorf("malformed address %q: %w", addrHex, err)
	}

	switch len(raw) {
	case 4:
		ip := net.IP{raw[3], raw[2], raw[1], raw[0]}
		return ip.String(), int(port), nil
	case 16:
		ip := make(net.IP, 16)
		for group := 0; group < 4; group++ {
			for i := 0; i < 4; i++ {
				ip[group*4+i] = raw[group*4+3-i]
			}
		}
		return ip.String(), int(port), nil
	default:
		return "", 0, fmt.Errorf("unexpected address length %d", len(raw))
	}
}
