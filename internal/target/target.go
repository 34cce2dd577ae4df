// Package target validates and collects the source artifacts a request
// points at before any adapter runs.
package target

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// supportedExtensions lists the artifact types adapters understand
var supportedExtensions = map[string]bool{
	".sol": true,
}

// IsSupported reports whether the path has a supported extension
func IsSupported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

/// Validate checks every target path: it must exist, be a regular file and
// carry a supported extension. The first violation fails the whole batch;
// validation happens before any tool runs. Returned paths are absolute.
func Validate(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no targets given")
	}

	validated := make([]string, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("target not found: %s", p)
			}
			return nil, fmt.Errorf("target %s: %w", p, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("target is not a file: %s", p)
		}
		if !IsSupported(p) {
			return nil, fmt.Errorf("unsupported target type: %s", p)
		}

		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", p, err)
		}
		validated = append(validated, abs)
	}
	return validated, nil
}

// Collect walks base and returns every supported file under it. A base that
// is itself a supported file is returned as a single-element batch.
func Collect(base string) ([]string, error) {
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", base, err)
	}

	if info.Mode().IsRegular() {
		if !IsSupported(base) {
			return nil, fmt.Errorf("unsupported target type: %s", base)
		}
		abs, err := filepath.Abs(base)
		if err != nil {
			return nil, err
		}
		return []string{abs}, nil
	}

	var out []string
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && IsSupported(path) {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			out = append(out, abs)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", base, err)
	}
	return out, nil
}
