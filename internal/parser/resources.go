package parser

import (
	"fmt"
	"regexp"

	"github.com/docker/go-units"

	dterrors "dtools/internal/errors"
)

// gpuPattern is 1-10 single digit GPU ids separated by commas.
var gpuPattern = regexp.MustCompile(`^(?:[0-9],){0,9}[0-9]$`)

// ParseGPUs validates a comma-separated GPU id list such as "0" or "0,1".
func ParseGPUs(raw string) (string, error) {
	if !gpuPattern.MatchString(raw) {
		return "", dterrors.NewRangeError(
			fmt.Sprintf("Invalid GPU options: '%s'", raw),
			"GPUs must be 1 to 10 comma-separated ids in [0-9]: '0', '0,1', ...",
			"",
			fmt.Errorf("invalid GPU list %q", raw),
		)
	}
	return raw, nil
}

// ParseShmSize validates a shared memory size ("64m", "2g", "1073741824")
// and returns ["--shm-size", raw]. An empty size yields no arguments.
func ParseShmSize(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	if _, err := units.RAMInBytes(raw); err != nil {
		return nil, dterrors.NewFormatError(
			fmt.Sprintf("Invalid shared memory size: '%s'", raw),
			"Sizes are a number with an optional unit: b, k, m, g",
			"Try --shm-size 2g",
			fmt.Errorf("invalid shm size %q: %w", raw, err),
		)
	}
	return []string{"--shm-size", raw}, nil
}
