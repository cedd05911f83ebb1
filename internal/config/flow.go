package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaharia-lab/claudeflow/internal/notification"
)

// FlowSettings is the optional file-based configuration (flow.yaml) layered
// on top of the environment. All fields have usable zero values, so a missing
// file is not an error.
type FlowSettings struct {
	// Notifications controls email delivery for error-class events.
	Notifications notification.Settings `yaml:"notifications"`
}

// LoadFlowSettings reads flow.yaml from filePath. If the file does not exist,
// defaults are returned (not an error).
func LoadFlowSettings(filePath string) (*FlowSettings, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // path is from admin-configured data dir
	if err != nil {
		if os.IsNotExist(err) {
			return &FlowSettings{}, nil
		}
		return nil, fmt.Errorf("reading flow settings %q: %w", filePath, err)
	}

	var fs FlowSettings
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("parsing flow settings %q: %w", filePath, err)
	}
	return &fs, nil
}
