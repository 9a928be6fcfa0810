// Package policy loads the optional link policy file that tunes how links
// are fetched and healed.
package policy

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy is the parsed link policy file.
type Policy struct {
	// UserAgent overrides the configured fetch user agent when set.
	UserAgent string `yaml:"user_agent"`
	// TrackingParams are stripped in addition to the built-in set.
	TrackingParams []string `yaml:"tracking_params"`
	// Headers are sent with every fetch.
	Headers map[string]string `yaml:"headers"`
}

// Loader handles loading and parsing of the policy file
type Loader struct {
	filePath string
}

// NewLoader creates a new policy loader. An empty path yields an empty policy.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the policy file
func (l *Loader) Load() (Policy, error) {
	if l.filePath == "" {
		return Policy{}, nil
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}

	// Header values may reference secrets kept in the environment.
	data = expandEnvVariables(data)

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy yaml: %w", err)
	}

	if err := p.normalize(); err != nil {
		return Policy{}, fmt.Errorf("invalid policy file %s: %w", l.filePath, err)
	}

	return p, nil
}

func (p *Policy) normalize() error {
	p.UserAgent = strings.TrimSpace(p.UserAgent)

	params := p.TrackingParams[:0]
	for _, param := range p.TrackingParams {
		if param = strings.TrimSpace(param); param != "" {
			params = append(params, param)
		}
	}
	p.TrackingParams = params

	for name := range p.Headers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("empty header name")
		}
		if strings.ContainsAny(name, " \t:\r\n") {
			return fmt.Errorf("invalid header name %q", name)
		}
	}
	return nil
}

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVariables replaces ${NAME} references with the environment value.
// Unset variables expand to "".
func expandEnvVariables(data []byte) []byte {
	return envVarRe.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envVarRe.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}
