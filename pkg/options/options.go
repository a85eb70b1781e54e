// Package options holds the command-line inputs of dbuild and drun.
package options

// BuildOptions configures one dbuild invocation.
type BuildOptions struct {
	Tag         string   `flag:"tag" validate:"required"`
	File        string   `flag:"file" validate:"required,file"`
	ContextPath string   `flag:"path" validate:"required,dir"`
	BuildArgs   []string `flag:"build-arg"`
	Root        bool     `flag:"root"`
	DryRun      bool     `flag:"dry-run"`
}

// RunOptions configures one drun invocation.
type RunOptions struct {
	Tag        string   `flag:"tag" validate:"required"`
	GPU        string   `flag:"gpu"`
	Mounts     []string `flag:"mount"`
	ShmSize    string   `flag:"shm-size"`
	Ports      []string `flag:"port"`
	Root       bool     `flag:"root"`
	CheckImage bool     `flag:"check-image"`
	DryRun     bool     `flag:"dry-run"`
	// Command runs inside the container instead of the configured default.
	Command []string
}
