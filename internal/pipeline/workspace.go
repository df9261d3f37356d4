package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// tempSuffix marks files still being written. Listings skip them.
const tempSuffix = ".part"

// Workspace holds the landing directory (downloaded archives) and the
// extraction directory (CSVs and their JSON batch files).
type Workspace struct {
	LandingDir string
	ExtractDir string
}

// NewWorkspace creates both directories if they do not exist yet.
func NewWorkspace(landingDir, extractDir string) (Workspace, error) {
	for _, dir := range []string{landingDir, extractDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Workspace{}, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return Workspace{LandingDir: landingDir, ExtractDir: extractDir}, nil
}

// landingFiles lists the archives in the landing directory.
func (w Workspace) landingFiles() ([]string, error) {
	return listFiles(w.LandingDir, "")
}

// extractFiles lists files in the extraction directory ending in ext.
func (w Workspace) extractFiles(ext string) ([]string, error) {
	return listFiles(w.ExtractDir, ext)
}

// listFiles returns the regular files of dir whose name ends in suffix, in
// name order.
func listFiles(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasSuffix(name, tempSuffix) {
			continue
		}
		if strings.HasSuffix(name, suffix) {
			names = append(names, name)
		}
	}
	return names, nil
}

// writeFile creates dir/name through a temp file in the same directory, so
// readers of the directory never see a half written file under the final
// name. An existing file is replaced.
func writeFile(dir, name string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(dir, "."+name+".*"+tempSuffix)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}
