// Package overlay generates the user layer appended on top of a built image.
//
// The layer creates a group and user matching the invoking host user, grants
// it password-less sudo and makes it the default user of the image, so files
// written to bind mounts are owned by the host user instead of root.
package overlay

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Build argument names declared by the user layer.
const (
	ArgUserName = "user_name"
	ArgUserID   = "user_id"
	ArgGroupID  = "group_id"
)

// UserLayer returns the Dockerfile that adds the invoking user to baseImage.
func UserLayer(baseImage string) string {
	lines := []string{
		fmt.Sprintf("FROM %s", baseImage),
		"ARG " + ArgUserName,
		"ARG " + ArgUserID,
		"ARG " + ArgGroupID,
		"RUN groupadd -g $group_id $user_name && " +
			"useradd -mu $user_id -g $group_id -s /bin/bash $user_name && " +
			"usermod -aG sudo $user_name && " +
			"apt-get update && apt-get install -y sudo && " +
			`echo "ALL ALL = (ALL) NOPASSWD: ALL" >> /etc/sudoers`,
		"USER $user_name",
		`WORKDIR "/home/$user_name"`,
	}
	return strings.Join(lines, "\n") + "\n"
}

// WriteTemp stores content in a temporary file and returns it opened for
// reading at offset 0. Where the OS allows it the file is unlinked right away,
// so nothing is left behind once the last descriptor is closed.
// Callers close the file; Cleanup also removes it if unlinking failed.
func WriteTemp(content string) (*os.File, error) {
	f, err := os.CreateTemp("", "dtools-user-layer-*.Dockerfile")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary Dockerfile: %w", err)
	}

	if _, err := f.WriteString(content); err != nil {
		Cleanup(f)
		return nil, fmt.Errorf("failed to write temporary Dockerfile: %w", err)
	}
	if err := f.Sync(); err != nil {
		Cleanup(f)
		return nil, fmt.Errorf("failed to flush temporary Dockerfile: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		Cleanup(f)
		return nil, fmt.Errorf("failed to rewind temporary Dockerfile: %w", err)
	}

	// fails on windows while the file is open; Cleanup handles it there
	_ = os.Remove(f.Name())
	return f, nil
}

// Cleanup closes and removes a file returned by WriteTemp.
func Cleanup(f *os.File) {
	if f == nil {
		return
	}
	_ = f.Close()
	if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove temporary Dockerfile", "path", f.Name(), "error", err)
	}
}
