package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dtools/internal/config"
	dterrors "dtools/internal/errors"
	"dtools/internal/identity"
	"dtools/internal/overlay"
	"dtools/internal/ui"
	"dtools/pkg/options"
	"dtools/pkg/runtime"
)

var alice = identity.Identity{Name: "alice", UID: 1000, GID: 1001}

func testConfig() *config.Config {
	return &config.Config{
		DockerBinary:   "docker",
		GPUBinary:      "nvidia-docker",
		GPUEnv:         "NV_GPU",
		DefaultCommand: []string{"bash"},
		Interactive:    true,
		Remove:         true,
		RevisionLabel:  true,
	}
}

// buildContext creates a build context directory holding a Dockerfile.
func buildContext(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "Dockerfile")
	require.NoError(t, os.WriteFile(file, []byte("FROM ubuntu:22.04\n"), 0644))
	return dir, file
}

func newTestBuilder(cfg *config.Config, factory Factory) (*Builder, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	b := NewBuilder(cfg, factory, ui.NewConsoleWithWriters(&out, &errOut))
	b.host = func() (identity.Identity, error) { return alice, nil }
	b.revision = func(string) (string, error) { return "", errors.New("not a git repository") }
	return b, &out, &errOut
}

func newTestRunner(cfg *config.Config, factory Factory) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	r := NewRunner(cfg, factory, ui.NewConsoleWithWriters(&out, &errOut))
	r.host = func() (identity.Identity, error) { return alice, nil }
	return r, &out, &errOut
}

func TestBuilder_Build_Root(t *testing.T) {
	dir, file := buildContext(t)
	factory := newMockFactory()
	b, _, _ := newTestBuilder(testConfig(), factory)

	want := []string{"docker", "build", "-t", "bob/app:1.0", "--build-arg", "A=1", "-f", file, dir}
	factory.launcher.On("Run", mock.Anything, runtime.Command{Args: want}).Return(0, nil)

	err := b.Build(context.Background(), options.BuildOptions{
		Tag:         "bob/app:1.0",
		File:        file,
		ContextPath: dir,
		BuildArgs:   []string{"A=1"},
		Root:        true,
	})

	require.NoError(t, err)
	factory.launcher.AssertExpectations(t)
	factory.launcher.AssertNotCalled(t, "Exec", mock.Anything)
}

func TestBuilder_Build_UserLayer(t *testing.T) {
	dir, file := buildContext(t)
	factory := newMockFactory()
	b, _, _ := newTestBuilder(testConfig(), factory)

	var stdin string
	factory.launcher.On("Run", mock.Anything, mock.Anything).Return(0, nil)
	factory.launcher.On("Exec", mock.Anything).Run(func(args mock.Arguments) {
		cmd := args.Get(0).(runtime.Command)
		require.NotNil(t, cmd.Stdin)
		data, err := io.ReadAll(cmd.Stdin)
		require.NoError(t, err)
		stdin = string(data)
	}).Return(nil)

	err := b.Build(context.Background(), options.BuildOptions{Tag: "app", File: file, ContextPath: dir})
	require.NoError(t, err)

	base := factory.launcher.Calls[0].Arguments.Get(1).(runtime.Command)
	assert.Equal(t, []string{"docker", "build", "-t", "alice/app:latest", "-f", file, dir}, base.Args)

	layer := factory.launcher.Calls[1].Arguments.Get(0).(runtime.Command)
	assert.Equal(t, []string{
		"docker", "build", "-t", "alice/app:latest",
		"--build-arg", "user_name=alice",
		"--build-arg", "user_id=1000",
		"--build-arg", "group_id=1001",
		"-",
	}, layer.Args)
	assert.Equal(t, overlay.UserLayer("alice/app:latest"), stdin)
}

func TestBuilder_Build_BaseBuildFails(t *testing.T) {
	dir, file := buildContext(t)
	factory := newMockFactory()
	b, _, _ := newTestBuilder(testConfig(), factory)
	factory.launcher.On("Run", mock.Anything, mock.Anything).Return(2, nil)

	err := b.Build(context.Background(), options.BuildOptions{Tag: "app", File: file, ContextPath: dir})

	var exitErr *dterrors.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Equal(t, 2, dterrors.ExitCode(err))
	factory.launcher.AssertNotCalled(t, "Exec", mock.Anything)
}

func TestBuilder_Build_LaunchError(t *testing.T) {
	dir, file := buildContext(t)
	factory := newMockFactory()
	b, _, _ := newTestBuilder(testConfig(), factory)
	launchErr := dterrors.NewNotFoundError("'docker' was not found in PATH", "", "", errors.New("executable docker not found"))
	factory.launcher.On("Run", mock.Anything, mock.Anything).Return(-1, launchErr)

	err := b.Build(context.Background(), options.BuildOptions{Tag: "app", File: file, ContextPath: dir})

	assert.ErrorIs(t, err, dterrors.ErrNotFound)
	factory.launcher.AssertNotCalled(t, "Exec", mock.Anything)
}

func TestBuilder_Build_RevisionLabel(t *testing.T) {
	dir, file := buildContext(t)
	factory := newMockFactory()
	b, _, _ := newTestBuilder(testConfig(), factory)
	b.revision = func(path string) (string, error) {
		assert.Equal(t, dir, path)
		return "0123abcd", nil
	}
	factory.launcher.On("Run", mock.Anything, mock.Anything).Return(0, nil)

	err := b.Build(context.Background(), options.BuildOptions{Tag: "app", File: file, ContextPath: dir, Root: true})
	require.NoError(t, err)

	base := factory.launcher.Calls[0].Arguments.Get(1).(runtime.Command)
	assert.Equal(t, []string{
		"docker", "build", "-t", "alice/app:latest",
		"--label", RevisionLabel + "=0123abcd",
		"-f", file, dir,
	}, base.Args)
}

func TestBuilder_Build_RevisionLabelDisabled(t *testing.T) {
	dir, file := buildContext(t)
	cfg := testConfig()
	cfg.RevisionLabel = false
	factory := newMockFactory()
	b, _, _ := newTestBuilder(cfg, factory)
	b.revision = func(string) (string, error) {
		t.Fatal("revision must not be looked up")
		return "", nil
	}
	factory.launcher.On("Run", mock.Anything, mock.Anything).Return(0, nil)

	err := b.Build(context.Background(), options.BuildOptions{Tag: "app", File: file, ContextPath: dir, Root: true})
	require.NoError(t, err)
}

func TestBuilder_Build_DryRun(t *testing.T) {
	dir, file := buildContext(t)
	factory := newMockFactory()
	b, out, _ := newTestBuilder(testConfig(), factory)

	err := b.Build(context.Background(), options.BuildOptions{Tag: "app", File: file, ContextPath: dir, DryRun: true})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "docker build -t alice/app:latest -f "+file+" "+dir)
	assert.Contains(t, out.String(), "FROM alice/app:latest")
	assert.Contains(t, out.String(), "docker build -t alice/app:latest --build-arg user_name=alice --build-arg user_id=1000 --build-arg group_id=1001 -")
	factory.launcher.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	factory.launcher.AssertNotCalled(t, "Exec", mock.Anything)
}

func TestBuilder_Build_InvalidInput(t *testing.T) {
	dir, file := buildContext(t)

	tests := []struct {
		name    string
		opts    options.BuildOptions
		wantErr error
	}{
		{
			name:    "missing tag",
			opts:    options.BuildOptions{File: file, ContextPath: dir},
			wantErr: dterrors.ErrFormat,
		},
		{
			name:    "invalid tag",
			opts:    options.BuildOptions{Tag: "a/b/c", File: file, ContextPath: dir},
			wantErr: dterrors.ErrFormat,
		},
		{
			name:    "missing Dockerfile",
			opts:    options.BuildOptions{Tag: "app", File: filepath.Join(dir, "missing"), ContextPath: dir},
			wantErr: dterrors.ErrNotFound,
		},
		{
			name:    "context is not a directory",
			opts:    options.BuildOptions{Tag: "app", File: file, ContextPath: file},
			wantErr: dterrors.ErrNotFound,
		},
		{
			name:    "invalid build argument",
			opts:    options.BuildOptions{Tag: "app", File: file, ContextPath: dir, BuildArgs: []string{"A=1", "B"}},
			wantErr: dterrors.ErrFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := newMockFactory()
			b, _, _ := newTestBuilder(testConfig(), factory)

			err := b.Build(context.Background(), tt.opts)

			assert.ErrorIs(t, err, tt.wantErr)
			factory.launcher.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
		})
	}
}

func TestBuilder_Build_TagAndBuildArgsReportedFirst(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "Missing.Dockerfile")

	tests := []struct {
		name    string
		opts    options.BuildOptions
		context string
	}{
		{
			name:    "invalid tag and missing Dockerfile",
			opts:    options.BuildOptions{Tag: "a/b/c", File: missing, ContextPath: dir},
			context: "'a/b/c' is not a valid image tag",
		},
		{
			name:    "invalid build arg and missing context",
			opts:    options.BuildOptions{Tag: "app", File: missing, ContextPath: filepath.Join(dir, "nope"), BuildArgs: []string{"A"}},
			context: "'A' is not a valid build argument",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, _ := newTestBuilder(testConfig(), newMockFactory())

			err := b.Build(context.Background(), tt.opts)

			require.ErrorIs(t, err, dterrors.ErrFormat)
			var dtErr *dterrors.DtoolsError
			require.ErrorAs(t, err, &dtErr)
			assert.Equal(t, tt.context, dtErr.Context)
		})
	}
}

func TestBuilder_Build_UnknownUser(t *testing.T) {
	dir, file := buildContext(t)
	b, _, _ := newTestBuilder(testConfig(), newMockFactory())
	b.host = func() (identity.Identity, error) { return identity.Identity{}, errors.New("no such user") }

	err := b.Build(context.Background(), options.BuildOptions{Tag: "app", File: file, ContextPath: dir})

	assert.ErrorIs(t, err, dterrors.ErrRuntimeFailed)
}

func TestRunner_Run_Defaults(t *testing.T) {
	factory := newMockFactory()
	r, _, _ := newTestRunner(testConfig(), factory)
	factory.launcher.On("Exec", runtime.Command{
		Args: []string{"docker", "run", "-it", "--rm", "--user", "1000:1001", "alice/app:latest", "bash"},
	}).Return(nil)

	err := r.Run(context.Background(), options.RunOptions{Tag: "app"})

	require.NoError(t, err)
	factory.launcher.AssertExpectations(t)
}

func TestRunner_Run_AllOptions(t *testing.T) {
	src := t.TempDir()
	factory := newMockFactory()
	r, _, _ := newTestRunner(testConfig(), factory)
	factory.launcher.On("Exec", runtime.Command{
		Args: []string{
			"nvidia-docker", "run", "-it", "--rm",
			"--mount", "type=bind,src=" + src + ",dst=/data,ro=true",
			"-p", "8080:80", "-p", "2222:2222",
			"--shm-size", "2g",
			"bob/torch:2.1", "python", "-m", "train", "--epochs", "3",
		},
		Env: map[string]string{"NV_GPU": "0,1"},
	}).Return(nil)

	err := r.Run(context.Background(), options.RunOptions{
		Tag:     "bob/torch:2.1",
		GPU:     "0,1",
		Mounts:  []string{src + ":/data:ro"},
		Ports:   []string{"8080:80", "2222"},
		ShmSize: "2g",
		Root:    true,
		Command: []string{"python", "-m", "train", "--epochs", "3"},
	})

	require.NoError(t, err)
	factory.launcher.AssertExpectations(t)
}

func TestRunner_Run_ConfiguredBinaries(t *testing.T) {
	cfg := testConfig()
	cfg.GPUBinary = "docker-gpu"
	cfg.GPUEnv = "CUDA_VISIBLE_DEVICES"
	cfg.Interactive = false
	cfg.Remove = false
	cfg.DefaultCommand = []string{"zsh", "-l"}
	factory := newMockFactory()
	r, _, _ := newTestRunner(cfg, factory)
	factory.launcher.On("Exec", runtime.Command{
		Args: []string{"docker-gpu", "run", "alice/app:latest", "zsh", "-l"},
		Env:  map[string]string{"CUDA_VISIBLE_DEVICES": "3"},
	}).Return(nil)

	err := r.Run(context.Background(), options.RunOptions{Tag: "app", GPU: "3", Root: true})

	require.NoError(t, err)
	factory.launcher.AssertExpectations(t)
}

func TestRunner_Run_DuplicatePortsWarn(t *testing.T) {
	factory := newMockFactory()
	r, _, errOut := newTestRunner(testConfig(), factory)
	factory.launcher.On("Exec", mock.Anything).Return(nil)

	err := r.Run(context.Background(), options.RunOptions{Tag: "app", Ports: []string{"8080:80", "8080:81"}})

	require.NoError(t, err)
	assert.Contains(t, errOut.String(), "Warning: host port 8080 is published more than once")
	cmd := factory.launcher.Calls[0].Arguments.Get(0).(runtime.Command)
	assert.Contains(t, cmd.Args, "8080:80")
	assert.Contains(t, cmd.Args, "8080:81")
}

func TestRunner_Run_InvalidInput(t *testing.T) {
	notDir := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(notDir, nil, 0644))

	tests := []struct {
		name    string
		opts    options.RunOptions
		wantErr error
	}{
		{name: "missing tag", opts: options.RunOptions{}, wantErr: dterrors.ErrFormat},
		{name: "invalid tag", opts: options.RunOptions{Tag: "app:"}, wantErr: dterrors.ErrFormat},
		{name: "invalid gpu", opts: options.RunOptions{Tag: "app", GPU: "10"}, wantErr: dterrors.ErrRange},
		{name: "mount syntax", opts: options.RunOptions{Tag: "app", Mounts: []string{"/tmp"}}, wantErr: dterrors.ErrSyntax},
		{name: "mount source", opts: options.RunOptions{Tag: "app", Mounts: []string{notDir + ":/data"}}, wantErr: dterrors.ErrNotFound},
		{name: "port syntax", opts: options.RunOptions{Tag: "app", Ports: []string{"80:"}}, wantErr: dterrors.ErrSyntax},
		{name: "port range", opts: options.RunOptions{Tag: "app", Ports: []string{"70000"}}, wantErr: dterrors.ErrRange},
		{name: "shm size", opts: options.RunOptions{Tag: "app", ShmSize: "lots"}, wantErr: dterrors.ErrFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := newMockFactory()
			r, _, _ := newTestRunner(testConfig(), factory)

			err := r.Run(context.Background(), tt.opts)

			assert.ErrorIs(t, err, tt.wantErr)
			factory.launcher.AssertNotCalled(t, "Exec", mock.Anything)
		})
	}
}

func TestRunner_Run_DryRun(t *testing.T) {
	factory := newMockFactory()
	r, out, _ := newTestRunner(testConfig(), factory)

	err := r.Run(context.Background(), options.RunOptions{Tag: "app", GPU: "0", DryRun: true, CheckImage: true})

	require.NoError(t, err)
	assert.Equal(t, "NV_GPU=0 nvidia-docker run -it --rm --user 1000:1001 alice/app:latest bash\n", out.String())
	factory.launcher.AssertNotCalled(t, "Exec", mock.Anything)
	factory.inspector.AssertNotCalled(t, "ImageExists", mock.Anything, mock.Anything)
}

func TestRunner_Run_CheckImage(t *testing.T) {
	t.Run("image exists", func(t *testing.T) {
		factory := newMockFactory()
		r, _, _ := newTestRunner(testConfig(), factory)
		factory.inspector.On("ImageExists", mock.Anything, "docker.io/alice/app:latest").Return(true, nil)
		factory.launcher.On("Exec", mock.Anything).Return(nil)

		err := r.Run(context.Background(), options.RunOptions{Tag: "app", CheckImage: true})

		require.NoError(t, err)
		factory.inspector.AssertExpectations(t)
		factory.launcher.AssertExpectations(t)
	})

	t.Run("image missing", func(t *testing.T) {
		factory := newMockFactory()
		r, _, _ := newTestRunner(testConfig(), factory)
		factory.inspector.On("ImageExists", mock.Anything, "docker.io/alice/app:latest").Return(false, nil)

		err := r.Run(context.Background(), options.RunOptions{Tag: "app", CheckImage: true})

		require.ErrorIs(t, err, dterrors.ErrNotFound)
		var dtErr *dterrors.DtoolsError
		require.ErrorAs(t, err, &dtErr)
		assert.Equal(t, "Build it first: dbuild -t alice/app:latest", dtErr.Suggestion)
		factory.launcher.AssertNotCalled(t, "Exec", mock.Anything)
	})

	t.Run("enabled by config", func(t *testing.T) {
		cfg := testConfig()
		cfg.CheckImage = true
		factory := newMockFactory()
		r, _, _ := newTestRunner(cfg, factory)
		factory.inspector.On("ImageExists", mock.Anything, mock.Anything).Return(false, nil)

		err := r.Run(context.Background(), options.RunOptions{Tag: "app"})

		assert.ErrorIs(t, err, dterrors.ErrNotFound)
	})

	t.Run("daemon unreachable", func(t *testing.T) {
		factory := newMockFactory()
		factory.inspectorErr = errors.New("failed to connect to Docker daemon")
		r, _, errOut := newTestRunner(testConfig(), factory)
		factory.launcher.On("Exec", mock.Anything).Return(nil)

		err := r.Run(context.Background(), options.RunOptions{Tag: "app", CheckImage: true})

		require.NoError(t, err)
		assert.Contains(t, errOut.String(), "skipping image check")
		factory.launcher.AssertExpectations(t)
	})

	t.Run("inspect error", func(t *testing.T) {
		factory := newMockFactory()
		r, _, errOut := newTestRunner(testConfig(), factory)
		factory.inspector.On("ImageExists", mock.Anything, mock.Anything).Return(false, errors.New("timeout"))
		factory.launcher.On("Exec", mock.Anything).Return(nil)

		err := r.Run(context.Background(), options.RunOptions{Tag: "app", CheckImage: true})

		require.NoError(t, err)
		assert.Contains(t, errOut.String(), "skipping image check: timeout")
	})
}

func TestRunner_Run_ExecFailure(t *testing.T) {
	factory := newMockFactory()
	r, _, _ := newTestRunner(testConfig(), factory)
	factory.launcher.On("Exec", mock.Anything).Return(
		dterrors.NewNotFoundError("'docker' was not found in PATH", "", "", errors.New("executable docker not found")))

	err := r.Run(context.Background(), options.RunOptions{Tag: "app"})

	assert.ErrorIs(t, err, dterrors.ErrNotFound)
}
