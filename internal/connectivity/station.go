package connectivity

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"irrigation-node/internal/config"
)

// Station is the network link the node associates through.
type Station interface {
	// Associate starts association with n. It may return before the link is up;
	// callers poll Connected.
	Associate(ctx context.Context, n config.Network) error
	// Connected reports the live association status.
	Connected(ctx context.Context) bool
}

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// NMCLIStation drives a Wi-Fi interface through NetworkManager's nmcli.
type NMCLIStation struct {
	iface string
	run   CommandRunner
}

func NewNMCLIStation(iface string) *NMCLIStation {
	return &NMCLIStation{iface: iface, run: execRunner}
}

// NewNMCLIStationWithRunner is used by tests to stub nmcli.
func NewNMCLIStationWithRunner(iface string, run CommandRunner) *NMCLIStation {
	return &NMCLIStation{iface: iface, run: run}
}

// Associate asks NetworkManager to join n without waiting for activation.
func (s *NMCLIStation) Associate(ctx context.Context, n config.Network) error {
	args := []string{"--wait", "0", "device", "wifi", "connect", n.SSID}
	if n.Password != "" {
		args = append(args, "password", n.Password)
	}
	if s.iface != "" {
		args = append(args, "ifname", s.iface)
	}
	if _, err := s.run(ctx, "nmcli", args...); err != nil {
		return fmt.Errorf("associate %q: %w", n.SSID, err)
	}
	return nil
}

// Connected reports whether the interface (or any wifi device when no
// interface is configured) is in the "connected" state.
func (s *NMCLIStation) Connected(ctx context.Context) bool {
	out, err := s.run(ctx, "nmcli", "-t", "-f", "DEVICE,TYPE,STATE", "device")
	if err != nil {
		return false
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Split(sc.Text(), ":")
		if len(fields) < 3 {
			continue
		}
		dev, typ, state := fields[0], fields[1], fields[2]
		if typ != "wifi" {
			continue
		}
		if s.iface != "" && dev != s.iface {
			continue
		}
		if state == "connected" {
			return true
		}
	}
	return false
}

// StaticStation is a link that is up or down without association, such as a
// wired interface or the simulator.
type StaticStation struct {
	up bool
}

func NewStaticStation(up bool) *StaticStation {
	return &StaticStation{up: up}
}

func (s *StaticStation) Associate(context.Context, config.Network) error { return nil }

func (s *StaticStation) Connected(context.Context) bool { return s.up }
