package parser

import (
	"fmt"
	"regexp"

	dterrors "dtools/internal/errors"
)

// buildArgPattern is '<key>=<value>' with exactly one '='.
var buildArgPattern = regexp.MustCompile(`^[^=]+=[^=]+$`)

// ParseBuildArgs validates every '<key>=<value>' entry and returns
// ["--build-arg", "<key>=<value>", ...] in input order. Nothing is returned
// unless all entries are valid.
func ParseBuildArgs(args []string) ([]string, error) {
	result := make([]string, 0, 2*len(args))
	for _, arg := range args {
		if !buildArgPattern.MatchString(arg) {
			return nil, dterrors.NewFormatError(
				fmt.Sprintf("'%s' is not a valid build argument", arg),
				"Build arguments must contain exactly one '=' with a non-empty key and value",
				"Use --build-arg KEY=VALUE",
				fmt.Errorf("invalid build argument %q", arg),
			)
		}
		result = append(result, "--build-arg", arg)
	}
	return result, nil
}
