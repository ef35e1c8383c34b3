// Package index maintains a reverse lookup from measured names (data
// columns and recorded motors) to the scans that carry them, backed by
// roaring bitmaps over scan ordinals.
package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/ChannyClaus/silx/specfile"
)

// Index maps a column or motor name to the set of scans measuring it.
// Immutable after Build.
type Index struct {
	names map[string]*roaring.Bitmap
	keys  []string // scan ordinal -> scan key
}

// Build scans the parsed file once. A motor counts as measured by a
// scan when it matches a data column or has a #P position recorded for
// its header slot.
func Build(sf *specfile.File) *Index {
	idx := &Index{
		names: make(map[string]*roaring.Bitmap),
		keys:  sf.Keys(),
	}
	for ord, s := range sf.Scans {
		for _, col := range s.Columns {
			idx.add(col, uint32(ord))
		}
		for mi, motor := range sf.Motors {
			if _, ok := s.ColumnIndex(motor); ok {
				idx.add(motor, uint32(ord))
				continue
			}
			if mi < len(s.Positions) {
				idx.add(motor, uint32(ord))
			}
		}
	}
	return idx
}

func (idx *Index) add(name string, ord uint32) {
	bm, ok := idx.names[name]
	if !ok {
		bm = roaring.New()
		idx.names[name] = bm
	}
	bm.Add(ord)
}

// Lookup returns the keys of the scans measuring name, in file order.
func (idx *Index) Lookup(name string) []string {
	bm, ok := idx.names[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, idx.keys[it.Next()])
	}
	return out
}

// Names lists every indexed name, sorted.
func (idx *Index) Names() []string {
	out := make([]string, 0, len(idx.names))
	for name := range idx.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Common returns the names measured by every scan of the file.
func (idx *Index) Common() []string {
	var out []string
	total := uint64(len(idx.keys))
	for _, name := range idx.Names() {
		if idx.names[name].GetCardinality() == total {
			out = append(out, name)
		}
	}
	return out
}
