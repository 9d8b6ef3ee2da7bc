package flowfile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ha1tch/flowdesigner/pkg/flow"
)

// IsYAML reports whether path names a YAML document.
func IsYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads a document, choosing the format from the extension. Anything
// other than .yaml or .yml is read as JSON.
func Load(path string) (*flow.ServiceFlow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if IsYAML(path) {
		return ParseYAML(data)
	}
	return ParseJSON(data)
}

// Save writes a document, choosing the format from the extension. The
// file is written to a temporary sibling first and renamed into place.
func Save(path string, f *flow.ServiceFlow) error {
	var (
		data []byte
		err  error
	)
	if IsYAML(path) {
		data, err = ToYAML(f)
	} else {
		data, err = ToJSON(f)
		if err == nil {
			data = append(data, '\n')
		}
	}
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
