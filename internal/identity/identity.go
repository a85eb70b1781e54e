// Package identity describes the host user invoking dbuild or drun.
package identity

import (
	"fmt"
	"os"
	"os/user"
)

// Identity is the login name and numeric ids of the invoking host user.
type Identity struct {
	Name string
	UID  int
	GID  int
}

// loginEnv is checked in order before falling back to the account database.
var loginEnv = []string{"LOGNAME", "USER", "LNAME", "USERNAME"}

// Current returns the identity of the user running this process.
func Current() (Identity, error) {
	name, err := LoginName()
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		Name: name,
		UID:  os.Getuid(),
		GID:  os.Getgid(),
	}, nil
}

// LoginName returns the login name of the invoking user.
func LoginName() (string, error) {
	for _, key := range loginEnv {
		if name := os.Getenv(key); name != "" {
			return name, nil
		}
	}

	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to determine login name: %w", err)
	}
	return u.Username, nil
}

// UserSpec returns the "<uid>:<gid>" value used by docker run --user.
func (i Identity) UserSpec() string {
	return fmt.Sprintf("%d:%d", i.UID, i.GID)
}
