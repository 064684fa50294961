package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Network is one candidate station credential. Candidates are tried in file order.
type Network struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

type networksFile struct {
	Networks []Network `yaml:"networks"`
}

// loadNetworks reads the candidate list from path. With no file configured it
// falls back to a single WIFI_SSID/WIFI_PASSWORD pair, or an empty list.
func loadNetworks(path string) ([]Network, error) {
	if path == "" {
		ssid := strings.TrimSpace(os.Getenv("WIFI_SSID"))
		if ssid == "" {
			return nil, nil
		}
		return []Network{{SSID: ssid, Password: os.Getenv("WIFI_PASSWORD")}}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read NETWORKS_FILE %q: %w", path, err)
	}
	return parseNetworks(raw)
}

func parseNetworks(raw []byte) ([]Network, error) {
	var f networksFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse networks: %w", err)
	}
	for i, n := range f.Networks {
		if strings.TrimSpace(n.SSID) == "" {
			return nil, fmt.Errorf("networks[%d]: ssid is required", i)
		}
	}
	return f.Networks, nil
}
