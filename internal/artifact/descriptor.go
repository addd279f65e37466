package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Descriptor locates a verified build output.
type Descriptor struct {
	Path    string
	Targets []Target
	Profile Profile
	Archs   []string
	Size    int64
}

// TargetNames joins the target names for display.
func (d Descriptor) TargetNames() string {
	names := make([]string, len(d.Targets))
	for i, t := range d.Targets {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}

// verifyOutput returns the size of path, or an ErrArtifactMissing BuildError
// when it is absent or empty. Directories (app bundles) count as present when
// they contain at least one entry.
func verifyOutput(path, target string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, &BuildError{Kind: ErrArtifactMissing, Target: target, Err: err}
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return 0, &BuildError{Kind: ErrArtifactMissing, Target: target, Err: err}
		}
		if len(entries) == 0 {
			return 0, &BuildError{Kind: ErrArtifactMissing, Target: target, Err: fmt.Errorf("%s is empty", path)}
		}
		return dirSize(path), nil
	}
	if info.Size() == 0 {
		return 0, &BuildError{Kind: ErrArtifactMissing, Target: target, Err: fmt.Errorf("%s is empty", path)}
	}
	return info.Size(), nil
}

func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, err := d.Info(); err == nil && !d.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}

// copyFile copies src to dst, creating dst's directory.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
