// Package results persists Datamonkey result documents to local disk.
package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiranshivaraju/hyphy-mcp/pkg/hyphy"
)

var ErrEmptyPath = errors.New("empty output path")

// Writer places result files under a fixed directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string { return w.dir }

// PathFor returns <dir>/<METHOD>_<remote job id>.json.
func (w *Writer) PathFor(method hyphy.Method, remoteJobID string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.json", method, safeName(remoteJobID)))
}

// Save writes data as indented JSON to path, creating parent directories.
// The file is written to a temporary sibling and renamed into place.
func Save(path string, data json.RawMessage) error {
	if path == "" {
		return ErrEmptyPath
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("results are not valid JSON: %w", err)
	}
	buf.WriteByte('\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// safeName keeps a remote id from escaping the results directory.
func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\':
			return '_'
		}
		return r
	}, strings.ReplaceAll(id, "..", "_"))
}
