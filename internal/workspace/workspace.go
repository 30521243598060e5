// Package workspace provides per-project scratch directories that workers
// read and write through tools.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	maxFileBytes   = 256 * 1024
	maxTreeEntries = 200
)

// Manager resolves project names to directories under a single root and
// guards every path against escaping it.
type Manager struct {
	root string
}

// NewManager creates a workspace manager rooted at dir, creating it if needed.
func NewManager(dir string) (*Manager, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}
	return &Manager{root: abs}, nil
}

// resolve maps a project-relative path to an absolute path inside the
// project's directory, rejecting traversal outside it.
func (m *Manager) resolve(project, rel string) (string, error) {
	if project == "" {
		return "", fmt.Errorf("project is required")
	}
	if strings.ContainsAny(project, `/\`) {
		return "", fmt.Errorf("invalid project name: %s", project)
	}
	base := filepath.Join(m.root, project)
	full := filepath.Join(base, filepath.FromSlash(rel))
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", rel)
	}
	return full, nil
}

// ReadFile returns the contents of a workspace file.
func (m *Manager) ReadFile(project, rel string) (string, error) {
	full, err := m.resolve(project, rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(full)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", rel)
	}
	if info.Size() > maxFileBytes {
		return "", fmt.Errorf("%s exceeds the %d byte read limit", rel, maxFileBytes)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return string(data), nil
}

// WriteFile writes a workspace file, creating parent directories as needed.
func (m *Manager) WriteFile(project, rel, content string) error {
	if rel == "" {
		return fmt.Errorf("path is required")
	}
	full, err := m.resolve(project, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directories for %s: %w", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return nil
}

// Tree returns a sorted snapshot of the project's file paths, relative to the
// project directory. The listing is capped so a runaway workspace cannot
// flood the model's context.
func (m *Manager) Tree(project string) ([]string, error) {
	base, err := m.resolve(project, ".")
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return []string{}, nil
	}

	var paths []string
	err = filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		if len(paths) >= maxTreeEntries {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk workspace: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}
