package upload

import (
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/doc-clustering/clusterview/internal/backend"
)

// File is one entry of a Selection.
type File struct {
	// RelativePath uses forward slashes, rooted at the chosen directory.
	RelativePath string
	Size         int64
	open         func() (io.ReadCloser, error)
}

// Selection is the ordered set of files chosen for one upload.
type Selection struct {
	files   []File
	spooled []string
}

// Len returns the number of files.
func (s *Selection) Len() int {
	if s == nil {
		return 0
	}
	return len(s.files)
}

// Files returns the files in selection order.
func (s *Selection) Files() []File {
	if s == nil {
		return nil
	}
	return s.files
}

// TotalSize sums the file sizes.
func (s *Selection) TotalSize() int64 {
	var total int64
	for _, f := range s.Files() {
		total += f.Size
	}
	return total
}

// Parts converts the selection to backend upload parts.
func (s *Selection) Parts() []backend.Part {
	parts := make([]backend.Part, 0, s.Len())
	for _, f := range s.Files() {
		parts = append(parts, backend.Part{Name: f.RelativePath, Open: f.open})
	}
	return parts
}

// FromMultipart spools every file part named field into spoolDir. The raw
// Content-Disposition filename is kept, since it carries the relative path a
// directory input reports. Call Close to remove the spooled copies.
func FromMultipart(mr *multipart.Reader, field, spoolDir string) (*Selection, error) {
	sel := &Selection{}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return sel, nil
		}
		if err != nil {
			sel.Close()
			return nil, fmt.Errorf("read multipart: %w", err)
		}

		name := rawFilename(p)
		if p.FormName() != field || name == "" {
			p.Close()
			continue
		}

		f, err := spool(p, spoolDir)
		p.Close()
		if err != nil {
			sel.Close()
			return nil, err
		}
		sel.spooled = append(sel.spooled, f.path)
		spooledPath := f.path
		sel.files = append(sel.files, File{
			RelativePath: cleanRelative(name),
			Size:         f.size,
			open: func() (io.ReadCloser, error) {
				return os.Open(spooledPath)
			},
		})
	}
}

// Close removes any files spooled for the selection.
func (s *Selection) Close() error {
	if s == nil {
		return nil
	}
	var firstErr error
	for _, p := range s.spooled {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	s.spooled = nil
	return firstErr
}

type spooledFile struct {
	path string
	size int64
}

func spool(r io.Reader, dir string) (*spooledFile, error) {
	f, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	return &spooledFile{path: f.Name(), size: n}, nil
}

func rawFilename(p *multipart.Part) string {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	return params["filename"]
}

// FromDirectory walks root and selects every regular file beneath it.
// Paths are prefixed with the directory's own name, matching what a
// browser directory picker reports.
func FromDirectory(root string) (*Selection, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	base := filepath.Base(filepath.Clean(root))
	sel := &Selection{}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		full := p
		sel.files = append(sel.files, File{
			RelativePath: path.Join(base, filepath.ToSlash(rel)),
			Size:         fi.Size(),
			open: func() (io.ReadCloser, error) {
				return os.Open(full)
			},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return sel, nil
}

// cleanRelative normalizes separators and drops leading "/" and "..".
func cleanRelative(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Clean("/" + name)
	return strings.TrimPrefix(name, "/")
}
