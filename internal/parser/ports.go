package parser

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/docker/go-connections/nat"

	dterrors "dtools/internal/errors"
)

// maxPort is the highest valid TCP/UDP port number.
const maxPort = 65535

// portPattern is '<port>[:<internal port>]' with 1-5 digits each.
var portPattern = regexp.MustCompile(`^([0-9]{1,5})(?::([0-9]{1,5}))?$`)

const portUsage = "Ports must look like '<port>' or '<port>:<internal port>' with numbers in [0-65535]"

// ParsePorts validates '<public>[:<internal>]' entries. The internal port
// defaults to the public one. Duplicates are kept; see DuplicatePublicPorts.
func ParsePorts(raw []string) ([]nat.PortMapping, error) {
	mappings := make([]nat.PortMapping, 0, len(raw))
	for _, entry := range raw {
		match := portPattern.FindStringSubmatch(entry)
		if match == nil {
			return nil, dterrors.NewSyntaxError(
				fmt.Sprintf("Port: '%s' is malformed", entry),
				portUsage,
				"",
				fmt.Errorf("invalid port mapping %q", entry),
			)
		}

		public, internal := match[1], match[2]
		if internal == "" {
			internal = public
		}

		publicNum, _ := strconv.Atoi(public)
		internalNum, _ := strconv.Atoi(internal)
		if publicNum > maxPort || internalNum > maxPort {
			return nil, dterrors.NewRangeError(
				fmt.Sprintf("Port: '%s' is out of range", entry),
				portUsage,
				"",
				fmt.Errorf("port mapping %q exceeds %d", entry, maxPort),
			)
		}

		port, err := nat.NewPort("tcp", strconv.Itoa(internalNum))
		if err != nil {
			return nil, fmt.Errorf("failed to build port %d: %w", internalNum, err)
		}
		mappings = append(mappings, nat.PortMapping{
			Port:    port,
			Binding: nat.PortBinding{HostPort: strconv.Itoa(publicNum)},
		})
	}
	return mappings, nil
}

// PortArgs renders mappings as ["-p", "<public>:<internal>", ...].
func PortArgs(mappings []nat.PortMapping) []string {
	args := make([]string, 0, 2*len(mappings))
	for _, m := range mappings {
		args = append(args, "-p", m.Binding.HostPort+":"+m.Port.Port())
	}
	return args
}

// DuplicatePublicPorts returns host ports bound more than once, in first-seen order.
// Docker refuses to start a container with such mappings.
func DuplicatePublicPorts(mappings []nat.PortMapping) []string {
	seen := make(map[string]int, len(mappings))
	var dups []string
	for _, m := range mappings {
		seen[m.Binding.HostPort]++
		if seen[m.Binding.HostPort] == 2 {
			dups = append(dups, m.Binding.HostPort)
		}
	}
	return dups
}
