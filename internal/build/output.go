package build

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CopyResources copies the regular files found directly in src into dst,
// overwriting files of the same name. Subdirectories are not descended into.
// A missing src copies nothing. It returns the number of files copied.
func CopyResources(src, dst string) (int, error) {
	if src == "" {
		return 0, nil
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading resources: %w", err)
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return 0, fmt.Errorf("creating output directory: %w", err)
	}

	copied := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return copied, err
		}
		copied++
	}

	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	// Written to a temp file and renamed so the static handler never serves
	// a half-written asset.
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), dst)
}

// ServedFiles lists the regular files directly in dir whose extension is one
// of exts. Files are ordered by the position of their extension in exts and
// then by name.
func ServedFiles(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing output directory: %w", err)
	}

	rank := make(map[string]int, len(exts))
	for i, ext := range exts {
		ext = strings.ToLower(ext)
		if _, seen := rank[ext]; !seen {
			rank[ext] = i
		}
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, ok := rank[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			files = append(files, entry.Name())
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		ri := rank[strings.ToLower(filepath.Ext(files[i]))]
		rj := rank[strings.ToLower(filepath.Ext(files[j]))]
		if ri != rj {
			return ri < rj
		}
		return files[i] < files[j]
	})

	return files, nil
}
