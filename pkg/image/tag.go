// Package image holds the image tag model shared by dbuild and drun.
package image

import (
	"fmt"
	"regexp"

	"github.com/distribution/reference"

	dterrors "dtools/internal/errors"
)

// DefaultVersion is used when a tag carries no ":<version>" part.
const DefaultVersion = "latest"

// tagPattern matches '[<user>/]<name>[:<version>]'.
var tagPattern = regexp.MustCompile(`^(?:(\w{0,64})/)?(\w[\w.-]{0,64})(?::([\w.-]{1,32}))?$`)

// Tag is a fully qualified image tag in the form '<user>/<name>:<version>'.
type Tag struct {
	User    string
	Name    string
	Version string
}

// ParseTag parses raw as '[<user>/]<name>[:<version>]'. A missing user is
// replaced by defaultUser and a missing version by "latest".
func ParseTag(raw, defaultUser string) (Tag, error) {
	match := tagPattern.FindStringSubmatch(raw)
	if match == nil {
		return Tag{}, dterrors.NewFormatError(
			fmt.Sprintf("'%s' is not a valid image tag", raw),
			"Tags must look like '[<user>/]<name>[:<version>]'",
			"Use letters, digits and '_' for the user, add '.' and '-' for name and version",
			fmt.Errorf("invalid image tag %q", raw),
		)
	}

	tag := Tag{User: match[1], Name: match[2], Version: match[3]}
	if tag.User == "" {
		tag.User = defaultUser
	}
	if tag.Version == "" {
		tag.Version = DefaultVersion
	}
	return tag, nil
}

// String returns the canonical '<user>/<name>:<version>' form.
func (t Tag) String() string {
	return fmt.Sprintf("%s/%s:%s", t.User, t.Name, t.Version)
}

// Reference converts the tag into a normalized docker reference, e.g.
// "docker.io/alice/app:latest". Docker rejects upper-case repository names
// which the tag grammar allows, so this may fail for an otherwise valid Tag.
func (t Tag) Reference() (reference.NamedTagged, error) {
	named, err := reference.ParseNormalizedNamed(t.String())
	if err != nil {
		return nil, fmt.Errorf("tag %s is not a valid docker reference: %w", t, err)
	}

	tagged, ok := named.(reference.NamedTagged)
	if !ok {
		return nil, fmt.Errorf("tag %s has no version", t)
	}
	return tagged, nil
}
