package runner

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/container"
	dockerarchive "github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/docker/docker/client"
)

// dockerEngine wraps the subset of the Docker Engine SDK the Runner uses,
// so tests can substitute a fake.
type dockerEngine interface {
	ContainerCreate(ctx context.Context, cfg *container.Config, host *container.HostConfig, name string) (string, error)
	CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader) error
	ContainerStart(ctx context.Context, containerID string) error
	ContainerWait(ctx context.Context, containerID string) (int64, error)
	ContainerLogs(ctx context.Context, containerID string) (stdout, stderr string, err error)
	CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string) error
	Close() error
}

// dockerClient adapts *client.Client to dockerEngine.
type dockerClient struct {
	cli *client.Client
}

func newDockerClient() (*dockerClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("container runtime unavailable: %w", err)
	}
	return &dockerClient{cli: cli}, nil
}

func (d *dockerClient) Close() error { return d.cli.Close() }

func (d *dockerClient) ContainerCreate(ctx context.Context, cfg *container.Config, host *container.HostConfig, name string) (string, error) {
	resp, err := d.cli.ContainerCreate(ctx, cfg, host, nil, nil, name)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (d *dockerClient) CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader) error {
	return d.cli.CopyToContainer(ctx, containerID, dstPath, content, container.CopyToContainerOptions{})
}

func (d *dockerClient) ContainerStart(ctx context.Context, containerID string) error {
	return d.cli.ContainerStart(ctx, containerID, container.StartOptions{})
}

func (d *dockerClient) ContainerWait(ctx context.Context, containerID string) (int64, error) {
	statusCh, errCh := d.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return -1, err
		}
		return 0, nil
	case status := <-statusCh:
		return status.StatusCode, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (d *dockerClient) ContainerLogs(ctx context.Context, containerID string) (string, string, error) {
	rc, err := d.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", err
	}
	defer rc.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, rc); err != nil && err != io.EOF {
		return "", "", err
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

func (d *dockerClient) CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, error) {
	rc, _, err := d.cli.CopyFromContainer(ctx, containerID, srcPath)
	return rc, err
}

func (d *dockerClient) ContainerRemove(ctx context.Context, containerID string) error {
	return d.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}

// buildHostConfig translates Config into container.HostConfig resource
// caps.
func buildHostConfig(cfg Config, network string, binds []string) (*container.HostConfig, error) {
	hc := &container.HostConfig{
		NetworkMode: container.NetworkMode(network),
		Binds:       binds,
	}

	if cfg.PidsLimit > 0 {
		pl := cfg.PidsLimit
		hc.Resources.PidsLimit = &pl
	}
	if cfg.CPULimit > 0 {
		hc.Resources.NanoCPUs = int64(cfg.CPULimit * 1e9)
	}
	if cfg.MemoryLimit != "" {
		bytes, err := parseMemoryLimit(cfg.MemoryLimit)
		if err != nil {
			return nil, err
		}
		hc.Resources.Memory = bytes
	}
	if cfg.TmpfsSize != "" {
		hc.Tmpfs = map[string]string{"/tmp": "rw,size=" + cfg.TmpfsSize}
	}
	if err := applyExtraFlags(hc, cfg.ExtraDockerFlags); err != nil {
		return nil, err
	}

	return hc, nil
}

// applyExtraFlags maps operator-supplied container flags onto the
// HostConfig. The SDK has no CLI-style flag pass-through, so only a fixed
// hardening subset is supported; an unrecognized flag fails the run
// rather than being silently dropped.
func applyExtraFlags(hc *container.HostConfig, flags []string) error {
	for i := 0; i < len(flags); i++ {
		name, value := flags[i], ""
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name, value = name[:eq], name[eq+1:]
		}

		// Flags below take a value, either attached with "=" or as the
		// next token.
		takeValue := func() error {
			if value != "" {
				return nil
			}
			if i+1 >= len(flags) {
				return fmt.Errorf("extra container flag %s is missing its value", name)
			}
			i++
			value = flags[i]
			return nil
		}

		switch name {
		case "--cap-add":
			if err := takeValue(); err != nil {
				return err
			}
			hc.CapAdd = append(hc.CapAdd, value)
		case "--cap-drop":
			if err := takeValue(); err != nil {
				return err
			}
			hc.CapDrop = append(hc.CapDrop, value)
		case "--security-opt":
			if err := takeValue(); err != nil {
				return err
			}
			hc.SecurityOpt = append(hc.SecurityOpt, value)
		case "--read-only":
			hc.ReadonlyRootfs = true
		default:
			return fmt.Errorf("unsupported extra container flag %q", flags[i])
		}
	}
	return nil
}

func parseMemoryLimit(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	mult := int64(1)
	unit := s[len(s)-1]
	numPart := s
	switch unit {
	case 'k', 'K':
		mult = 1 << 10
		numPart = s[:len(s)-1]
	case 'm', 'M':
		mult = 1 << 20
		numPart = s[:len(s)-1]
	case 'g', 'G':
		mult = 1 << 30
		numPart = s[:len(s)-1]
	}
	var n int64
	if _, err := fmt.Sscanf(numPart, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid memory limit %q: %w", s, err)
	}
	return n * mult, nil
}

// tarWorkspace builds a tar stream of dir's contents for CopyToContainer.
func tarWorkspace(dir string) (io.ReadCloser, error) {
	return dockerarchive.Tar(dir, dockerarchive.Uncompressed)
}

// untarWorkspace extracts a tar stream from CopyFromContainer into dir.
func untarWorkspace(rc io.Reader, dir string) error {
	return dockerarchive.Untar(rc, dir, &dockerarchive.TarOptions{NoLchown: true})
}

// zipWorkspace zips dir's contents (relative paths, no leading dir
// component) and returns the archive bytes.
func zipWorkspace(dir string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// isTimeout reports whether err represents a context deadline expiry.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
