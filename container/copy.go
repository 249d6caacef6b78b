package container

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	dockercontainer "github.com/docker/docker/api/types/container"
)

// CopyFileFromContainer streams a tar archive for the container path and
// extracts the named file into destinationDir. Docker always wraps the file
// in a single-entry tar archive.
func (m *Manager) CopyFileFromContainer(ctx context.Context, handle *Handle, containerPath, destinationDir string) error {
	stream, _, err := m.api.CopyFromContainer(ctx, handle.ID, containerPath)
	if err != nil {
		return fmt.Errorf("failed to copy %s from container %s: %w", containerPath, handle.ID, err)
	}
	defer stream.Close()

	tr := tar.NewReader(stream)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive for %s: %w", containerPath, err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		target := filepath.Join(destinationDir, filepath.Base(containerPath))
		out, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", target, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("failed to extract %s: %w", target, err)
		}
		if err := out.Close(); err != nil {
			return err
		}
	}
}

// CopyFileToContainer wraps the host file in a tar archive and uploads it
// into the container destination directory.
func (m *Manager) CopyFileToContainer(ctx context.Context, handle *Handle, hostPath, containerDir string) error {
	info, err := os.Stat(hostPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", hostPath, err)
	}

	pr, pw := io.Pipe()
	go func() {
		tw := tar.NewWriter(pw)
		defer func() {
			tw.Close()
			pw.Close()
		}()

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		header.Name = filepath.Base(hostPath)
		if err := tw.WriteHeader(header); err != nil {
			pw.CloseWithError(err)
			return
		}
		src, err := os.Open(hostPath)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		defer src.Close()
		if _, err := io.Copy(tw, src); err != nil {
			pw.CloseWithError(err)
		}
	}()

	if err := m.api.CopyToContainer(ctx, handle.ID, containerDir, pr, dockercontainer.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("failed to copy %s into container %s: %w", hostPath, handle.ID, err)
	}
	return nil
}
