package settings

import (
	"fmt"
	"os"
	"strings"

	"github.com/park285/chess-broadcast/internal/domain"
	yaml "gopkg.in/yaml.v3"
)

// LoadDefaultsFile reads the seed settings used until an admin writes the store.
//
//	broadcast:
//	  enabled: true
//	  base_url: https://club.example.org
//	  round_url_template: "{base}/broadcast/round/{round}"
func LoadDefaultsFile(path string, fallback domain.BroadcastSettings) (domain.BroadcastSettings, error) {
	if strings.TrimSpace(path) == "" {
		return fallback, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fallback, fmt.Errorf("read settings file: %w", err)
	}
	return parseDefaults(b, fallback)
}

func parseDefaults(b []byte, fallback domain.BroadcastSettings) (domain.BroadcastSettings, error) {
	var doc struct {
		Broadcast *domain.BroadcastSettings `yaml:"broadcast"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fallback, fmt.Errorf("parse settings file: %w", err)
	}
	if doc.Broadcast == nil {
		return fallback, nil
	}
	out := *doc.Broadcast
	out.BaseURL = strings.TrimRight(strings.TrimSpace(out.BaseURL), "/")
	return out, nil
}
