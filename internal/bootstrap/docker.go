package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// DockerBootstrap discovers sibling nodes by container name suffix and
// Docker network membership, shelling out to the docker CLI rather than
// linking the Docker SDK — the same technique the reference cluster's
// own test tooling uses.
type DockerBootstrap struct {
	Suffix  string // e.g. "p2pstreamd-node"
	Port    int    // admin/overlay listen port inside the container
	Network string // e.g. "overlay-net"
}

func NewDockerBootstrap(suffix string, port int, network string) *DockerBootstrap {
	return &DockerBootstrap{
		Suffix:  strings.TrimSpace(suffix),
		Port:    port,
		Network: strings.TrimSpace(network),
	}
}

// Discover lists running containers whose name contains Suffix and are
// attached to Network, returning "name:Port" addresses (container DNS
// names resolve within the network, so no IP lookup is needed).
func (d *DockerBootstrap) Discover(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "docker", "ps", "--format", "{{.Names}}")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("docker ps: %w", err)
	}

	var addrs []string
	for _, name := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		name = strings.TrimSpace(name)
		if name == "" || !strings.Contains(name, d.Suffix) {
			continue
		}

		inspect := exec.CommandContext(ctx, "docker", "inspect", name)
		raw, err := inspect.Output()
		if err != nil {
			continue
		}

		var data []struct {
			NetworkSettings struct {
				Networks map[string]struct {
					IPAddress string `json:"IPAddress"`
				} `json:"Networks"`
			} `json:"NetworkSettings"`
		}
		if err := json.Unmarshal(raw, &data); err != nil || len(data) == 0 {
			continue
		}

		if net, ok := data[0].NetworkSettings.Networks[d.Network]; !ok || net.IPAddress == "" {
			continue
		}

		addrs = append(addrs, fmt.Sprintf("%s:%d", name, d.Port))
	}
	return addrs, nil
}

// Register and Deregister are no-ops: container discovery works off
// `docker ps` directly, there is nothing to advertise separately.
func (d *DockerBootstrap) Register(ctx context.Context, selfID, selfAddr string) error {
	return nil
}
func (d *DockerBootstrap) Deregister(ctx context.Context, selfID, selfAddr string) error {
	return nil
}
