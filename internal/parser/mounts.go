package parser

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"github.com/docker/docker/api/types/mount"

	dterrors "dtools/internal/errors"
)

// mountPattern is '<source path>:<target path>[:ro]'.
var mountPattern = regexp.MustCompile(`^([^:]+):([^:]+)(:ro)?$`)

const mountUsage = "Mounts must look like '<source path>:<target path>[:ro]'"

// ParseMounts validates '<source>:<target>[:ro]' entries into bind mounts.
// Sources are resolved to absolute host directories; targets must already be
// absolute container paths.
func ParseMounts(raw []string) ([]mount.Mount, error) {
	mounts := make([]mount.Mount, 0, len(raw))
	for _, entry := range raw {
		m, err := parseMount(entry)
		if err != nil {
			return nil, err
		}
		mounts = append(mounts, m)
	}
	return mounts, nil
}

func parseMount(entry string) (mount.Mount, error) {
	match := mountPattern.FindStringSubmatch(entry)
	if match == nil {
		return mount.Mount{}, dterrors.NewSyntaxError(
			fmt.Sprintf("Mount: '%s' is malformed", entry),
			mountUsage,
			"Append ':ro' to mount read-only",
			fmt.Errorf("invalid mount %q", entry),
		)
	}
	source, target, readonly := match[1], match[2], match[3] != ""

	if info, err := os.Stat(source); err != nil || !info.IsDir() {
		return mount.Mount{}, dterrors.NewNotFoundError(
			fmt.Sprintf("Mount: source path '%s' is not a directory", source),
			"Only existing host directories can be bind mounted",
			"Create the directory first or fix the path",
			fmt.Errorf("mount source %q is not a directory", source),
		)
	}

	absSource, err := filepath.Abs(source)
	if err != nil {
		return mount.Mount{}, fmt.Errorf("failed to resolve mount source %s: %w", source, err)
	}

	// container paths are always slash separated, whatever the host OS
	if !path.IsAbs(target) {
		return mount.Mount{}, dterrors.NewFormatError(
			fmt.Sprintf("Mount: target path '%s' should be absolute", target),
			mountUsage,
			fmt.Sprintf("Use '/%s' as the target", target),
			fmt.Errorf("mount target %q is not absolute", target),
		)
	}

	return mount.Mount{
		Type:     mount.TypeBind,
		Source:   absSource,
		Target:   target,
		ReadOnly: readonly,
	}, nil
}

// MountArgs renders mounts as ["--mount", "type=bind,src=...,dst=...,ro=...", ...].
func MountArgs(mounts []mount.Mount) []string {
	args := make([]string, 0, 2*len(mounts))
	for _, m := range mounts {
		args = append(args, "--mount", MountDescriptor(m))
	}
	return args
}

// MountDescriptor returns the docker --mount value for m.
func MountDescriptor(m mount.Mount) string {
	return fmt.Sprintf("type=%s,src=%s,dst=%s,ro=%t", m.Type, m.Source, m.Target, m.ReadOnly)
}
