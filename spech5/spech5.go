// Package spech5 exposes a SPEC scan file through a read-only virtual
// hierarchy following the layout conventions of HDF5 scientific
// containers: every scan appears as a "<number>.<order>" group with a
// fixed skeleton of sub-groups and datasets, materialized lazily on
// first access.
//
// The canonical per-scan structure is:
//
//	/<num>.<order>/
//	  title
//	  start_time
//	  measurement/
//	    <column>...
//	    mca_<i>/{data, info/{calibration, channels}}
//	  instrument/
//	    positioners/<motor>...
//	    mca_<i>/...            (alias of measurement/mca_<i>)
//
// All reads after Open are pure functions of immutable in-memory state;
// concurrent reads from multiple goroutines need no locking.
package spech5

import (
	"io"
	"sync"

	"github.com/ChannyClaus/silx/specfile"
)

// File is the handle over one parsed SPEC file. The whole file is
// parsed eagerly at open time; facade nodes are created lazily per
// access and carry no state of their own.
type File struct {
	spec *specfile.File

	mu     sync.RWMutex
	values map[valueKey]any
}

// Open parses the SPEC file at path and returns the virtual view.
// Malformed input fails the whole open with a *specfile.FormatError:
// there is no partial or degraded-mode handle.
func Open(path string, opts ...specfile.Option) (*File, error) {
	sf, err := specfile.Read(path, opts...)
	if err != nil {
		return nil, err
	}
	return New(sf), nil
}

// OpenReader is Open over an arbitrary reader.
func OpenReader(r io.Reader, opts ...specfile.Option) (*File, error) {
	sf, err := specfile.Parse(r, opts...)
	if err != nil {
		return nil, err
	}
	return New(sf), nil
}

// New wraps an already parsed specfile.File.
func New(sf *specfile.File) *File {
	return &File{
		spec: sf,
		values: make(map[valueKey]any),
	}
}

// Spec returns the backing parsed file.
func (f *File) Spec() *specfile.File { return f.spec }

// Keys lists scan keys in file order (not numeric order).
func (f *File) Keys() []string {
	return f.spec.Keys()
}

// Root returns the root group.
func (f *File) Root() *Group {
	return &Group{file: f, path: "/", ref: nodeRef{kind: refRoot}}
}

// Contains reports whether path resolves. It runs the exact resolution
// used by Get.
func (f *File) Contains(path string) bool {
	_, err := f.resolve(path)
	return err == nil
}

// Get resolves an absolute or root-relative path to its node.
func (f *File) Get(path string) (Node, error) {
	ref, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	return f.node(path, ref), nil
}

// Group resolves path and requires a group.
func (f *File) Group(path string) (*Group, error) {
	return f.Root().Group(path)
}

// Dataset resolves path and requires a dataset.
func (f *File) Dataset(path string) (*Dataset, error) {
	return f.Root().Dataset(path)
}

// Visit walks the full tree below the root once, pre-order, groups
// before their descendants, children in declaration order. The callback
// receives each node's full path; returning a non-nil error stops the
// walk and is returned to the caller. The root itself is not visited.
func (f *File) Visit(fn func(path string) error) error {
	return f.walk("/", nodeRef{kind: refRoot}, func(p string, _ Node) error {
		return fn(p)
	})
}

// VisitItems is Visit with the node passed alongside its path.
func (f *File) VisitItems(fn func(path string, n Node) error) error {
	return f.walk("/", nodeRef{kind: refRoot}, fn)
}

func (f *File) walk(base string, ref nodeRef, fn func(string, Node) error) error {
	for _, c := range f.children(ref) {
		p := base + c.name
		if err := fn(p, f.node(p, c.ref)); err != nil {
			return err
		}
		if c.ref.isGroup() {
			if err := f.walk(p+"/", c.ref, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
