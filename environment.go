package settings

import (
	"fmt"
	"strings"
)

// Environment names a deployment environment.
type Environment string

const (
	EnvironmentLocal      Environment = "local"
	EnvironmentProduction Environment = "production"
)

func (e Environment) String() string { return string(e) }

// ParseEnvironment parses an environment name case-insensitively.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return EnvironmentLocal, nil
	case "production":
		return EnvironmentProduction, nil
	default:
		return "", fmt.Errorf("%w: unrecognized environment %q", ErrInvalidLayer, s)
	}
}
