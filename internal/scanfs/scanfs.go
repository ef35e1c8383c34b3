// Package scanfs exposes a virtual scan tree over NFS.
// It adapts the spech5 path API to billy.Filesystem for use with
// willscott/go-nfs, so the tree can be browsed with ls and cat.
package scanfs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/ChannyClaus/silx/spech5"
)

var errReadOnly = fmt.Errorf("read-only filesystem")

// ScanFS adapts a spech5.File to billy.Filesystem. Datasets are
// rendered as plain text, one data row per line.
type ScanFS struct {
	file      *spech5.File
	scansJSON []byte
	mountTime time.Time

	mu       sync.Mutex
	rendered map[string][]byte
}

// New creates a billy.Filesystem backed by an open virtual file.
func New(f *spech5.File) *ScanFS {
	index := struct {
		File  string   `json:"file"`
		Scans []string `json:"scans"`
	}{
		File:  f.Spec().Name,
		Scans: f.Keys(),
	}
	sj, _ := json.MarshalIndent(index, "", "  ")
	sj = append(sj, '\n')
	return &ScanFS{
		file:      f,
		scansJSON: sj,
		mountTime: time.Now(),
		rendered:  make(map[string][]byte),
	}
}

// --- billy.Basic ---

func (fs *ScanFS) Create(filename string) (billy.File, error) {
	return nil, errReadOnly
}

func (fs *ScanFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *ScanFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, errReadOnly
	}
	filename = cleanPath(filename)

	if filename == "/_scans.json" {
		return &bytesFile{name: "_scans.json", data: fs.scansJSON}, nil
	}

	node, err := fs.file.Get(filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	ds, ok := node.(*spech5.Dataset)
	if !ok {
		return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("is a directory")}
	}

	data, err := fs.render(filename, ds)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: err}
	}
	return &bytesFile{name: filename, data: data}, nil
}

func (fs *ScanFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *ScanFS) Rename(oldpath, newpath string) error { return errReadOnly }
func (fs *ScanFS) Remove(filename string) error         { return errReadOnly }

func (fs *ScanFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *ScanFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *ScanFS) ReadDir(path string) ([]os.FileInfo, error) {
	path = cleanPath(path)

	var group *spech5.Group
	if path == "/" {
		group = fs.file.Root()
	} else {
		g, err := fs.file.Group(path)
		if err != nil {
			if errors.Is(err, spech5.ErrNotFound) {
				return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
			}
			return nil, &os.PathError{Op: "readdir", Path: path, Err: fmt.Errorf("not a directory")}
		}
		group = g
	}

	keys := group.Keys()
	infos := make([]os.FileInfo, 0, len(keys)+1)

	if path == "/" {
		infos = append(infos, &staticFileInfo{
			name:    "_scans.json",
			size:    int64(len(fs.scansJSON)),
			mode:    0o444,
			modTime: fs.mountTime,
		})
	}

	for _, key := range keys {
		child, err := group.Get(key)
		if err != nil {
			continue
		}
		info, err := fs.nodeInfo(child)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (fs *ScanFS) MkdirAll(filename string, perm os.FileMode) error {
	return errReadOnly
}

// --- billy.Symlink ---

func (fs *ScanFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	if filename == "/" {
		return &staticFileInfo{
			name:    "/",
			mode:    os.ModeDir | 0o555,
			modTime: fs.mountTime,
		}, nil
	}
	if filename == "/_scans.json" {
		return &staticFileInfo{
			name:    "_scans.json",
			size:    int64(len(fs.scansJSON)),
			mode:    0o444,
			modTime: fs.mountTime,
		}, nil
	}

	node, err := fs.file.Get(filename)
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}
	return fs.nodeInfo(node)
}

func (fs *ScanFS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *ScanFS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *ScanFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *ScanFS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *ScanFS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

// --- internals ---

func (fs *ScanFS) nodeInfo(node spech5.Node) (os.FileInfo, error) {
	if g, ok := node.(*spech5.Group); ok {
		return &staticFileInfo{
			name:    g.Name(),
			mode:    os.ModeDir | 0o555,
			modTime: fs.mountTime,
		}, nil
	}
	ds := node.(*spech5.Dataset)
	data, err := fs.render(ds.Path(), ds)
	if err != nil {
		// Datasets without a readable value (e.g. a motor with no
		// recorded position) still stat as empty files.
		data = nil
	}
	return &staticFileInfo{
		name:    ds.Name(),
		size:    int64(len(data)),
		mode:    0o444,
		modTime: fs.mountTime,
	}, nil
}

// render produces the text form of a dataset, cached per path.
// Values are immutable so the cache never invalidates.
func (fs *ScanFS) render(path string, ds *spech5.Dataset) ([]byte, error) {
	fs.mu.Lock()
	if data, ok := fs.rendered[path]; ok {
		fs.mu.Unlock()
		return data, nil
	}
	fs.mu.Unlock()

	v, err := ds.Read()
	if err != nil {
		return nil, err
	}
	data := renderValue(v)

	fs.mu.Lock()
	fs.rendered[path] = data
	fs.mu.Unlock()
	return data, nil
}

func renderValue(v any) []byte {
	var b strings.Builder
	switch val := v.(type) {
	case string:
		b.WriteString(val)
		b.WriteByte('\n')
	case []float32:
		for _, f := range val {
			b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
			b.WriteByte('\n')
		}
	case []float64:
		for _, f := range val {
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
			b.WriteByte('\n')
		}
	case [][]float64:
		for _, row := range val {
			for i, f := range row {
				if i > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
			}
			b.WriteByte('\n')
		}
	default:
		fmt.Fprintf(&b, "%v\n", val)
	}
	return []byte(b.String())
}

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(path string) string {
	path = filepath.Clean("/" + path)
	if path == "." {
		return "/"
	}
	return path
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

// Compile-time interface checks.
var (
	_ billy.Filesystem = (*ScanFS)(nil)
	_ billy.Capable    = (*ScanFS)(nil)
	_ billy.File       = (*bytesFile)(nil)
)
