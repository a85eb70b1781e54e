// Package command assembles docker command lines.
//
// Every function returns the complete argv, executable first, in the order
// docker expects: subcommand, flags in declaration order, positionals last.
package command

import (
	"os"
	"strconv"

	"dtools/internal/identity"
	"dtools/internal/overlay"
	"dtools/pkg/image"
	"dtools/pkg/runtime"
)

// Label is a single "--label key=value" pair.
type Label struct {
	Key   string
	Value string
}

// BuildSpec describes the base image build.
type BuildSpec struct {
	Tag image.Tag
	// BuildArgs are validated "--build-arg", "k=v" tokens.
	BuildArgs   []string
	Labels      []Label
	File        string
	ContextPath string
}

// Build returns `docker build -t <tag> [--build-arg ..] [--label ..] -f <file> <path>`.
func Build(docker string, spec BuildSpec) runtime.Command {
	args := []string{docker, "build", "-t", spec.Tag.String()}
	args = append(args, spec.BuildArgs...)
	for _, l := range spec.Labels {
		if l.Key != "" && l.Value != "" {
			args = append(args, "--label", l.Key+"="+l.Value)
		}
	}
	args = append(args, "-f", spec.File, spec.ContextPath)
	return runtime.Command{Args: args}
}

// UserLayer returns the second build pass which reads the user layer
// Dockerfile from stdin and re-tags the result under the same tag.
func UserLayer(docker string, tag image.Tag, host identity.Identity, dockerfile *os.File) runtime.Command {
	args := []string{
		docker, "build", "-t", tag.String(),
		"--build-arg", overlay.ArgUserName + "=" + host.Name,
		"--build-arg", overlay.ArgUserID + "=" + strconv.Itoa(host.UID),
		"--build-arg", overlay.ArgGroupID + "=" + strconv.Itoa(host.GID),
		"-",
	}
	return runtime.Command{Args: args, Stdin: dockerfile}
}

// RunSpec describes a container launch.
type RunSpec struct {
	Executable  string
	Env         map[string]string
	Interactive bool
	Remove      bool
	// User is "<uid>:<gid>"; empty runs as the image's default user.
	User    string
	Mounts  []string
	Ports   []string
	ShmSize []string
	Tag     image.Tag
	Command []string
}

// Run returns `<docker> run [-it] [--rm] [--user u:g] [mounts] [ports] [shm] <tag> <command>`.
func Run(spec RunSpec) runtime.Command {
	args := []string{spec.Executable, "run"}
	if spec.Interactive {
		args = append(args, "-it")
	}
	if spec.Remove {
		args = append(args, "--rm")
	}
	if spec.User != "" {
		args = append(args, "--user", spec.User)
	}
	args = append(args, spec.Mounts...)
	args = append(args, spec.Ports...)
	args = append(args, spec.ShmSize...)
	args = append(args, spec.Tag.String())
	args = append(args, spec.Command...)

	return runtime.Command{Args: args, Env: spec.Env}
}
