package spech5

import (
	"fmt"
	"strings"

	"github.com/ChannyClaus/silx/specfile"
)

// refKind tags a resolved position in the canonical skeleton.
type refKind uint8

const (
	refRoot refKind = iota
	refScan
	refTitle
	refStartTime
	refMeasurement
	refColumn      // idx = column index
	refInstrument
	refPositioners
	refMotor       // idx = motor index in the file header
	refMCA         // idx = analyzer index
	refMCAData     // idx = analyzer index
	refMCAInfo     // idx = analyzer index
	refMCACalib    // idx = analyzer index
	refMCAChannels // idx = analyzer index
)

// nodeRef is a typed reference into the in-memory scan records. It is
// the unit the resolver hands to the materializer: cheap to copy,
// carries no materialized data.
type nodeRef struct {
	kind refKind
	scan *specfile.Scan
	idx  int
}

func (r nodeRef) isGroup() bool {
	switch r.kind {
	case refRoot, refScan, refMeasurement, refInstrument, refPositioners, refMCA, refMCAInfo:
		return true
	}
	return false
}

type child struct {
	name string
	ref  nodeRef
}

// children regenerates the canonical skeleton one level at a time.
// Membership and order are derived from the scan records on every call;
// nothing is stored. Datasets have no children.
func (f *File) children(ref nodeRef) []child {
	s := ref.scan
	switch ref.kind {
	case refRoot:
		out := make([]child, len(f.spec.Scans))
		for i, scan := range f.spec.Scans {
			out[i] = child{scan.Key(), nodeRef{kind: refScan, scan: scan}}
		}
		return out

	case refScan:
		return []child{
			{"title", nodeRef{kind: refTitle, scan: s}},
			{"start_time", nodeRef{kind: refStartTime, scan: s}},
			{"measurement", nodeRef{kind: refMeasurement, scan: s}},
			{"instrument", nodeRef{kind: refInstrument, scan: s}},
		}

	case refMeasurement:
		out := make([]child, 0, len(s.Columns)+s.NumMCA())
		for i, col := range s.Columns {
			out = append(out, child{col, nodeRef{kind: refColumn, scan: s, idx: i}})
		}
		for a := 0; a < s.NumMCA(); a++ {
			out = append(out, child{mcaName(a), nodeRef{kind: refMCA, scan: s, idx: a}})
		}
		return out

	case refInstrument:
		out := []child{{"positioners", nodeRef{kind: refPositioners, scan: s}}}
		for a := 0; a < s.NumMCA(); a++ {
			out = append(out, child{mcaName(a), nodeRef{kind: refMCA, scan: s, idx: a}})
		}
		return out

	case refPositioners:
		out := make([]child, len(f.spec.Motors))
		for i, motor := range f.spec.Motors {
			out[i] = child{motor, nodeRef{kind: refMotor, scan: s, idx: i}}
		}
		return out

	case refMCA:
		return []child{
			{"data", nodeRef{kind: refMCAData, scan: s, idx: ref.idx}},
			{"info", nodeRef{kind: refMCAInfo, scan: s, idx: ref.idx}},
		}

	case refMCAInfo:
		return []child{
			{"calibration", nodeRef{kind: refMCACalib, scan: s, idx: ref.idx}},
			{"channels", nodeRef{kind: refMCAChannels, scan: s, idx: ref.idx}},
		}
	}
	return nil
}

func mcaName(analyzer int) string {
	return fmt.Sprintf("mca_%d", analyzer)
}

// resolve maps a virtual path to a nodeRef. One trailing slash is
// permitted for groups and rejected for datasets; every segment must
// match a legal continuation of the skeleton at its depth. Containment
// checks call this same function, so "exists" and "read" can never
// disagree.
func (f *File) resolve(p string) (nodeRef, error) {
	norm := p
	trailingSlash := false
	if len(norm) > 1 && strings.HasSuffix(norm, "/") {
		norm = norm[:len(norm)-1]
		trailingSlash = true
	}
	if norm == "" || norm == "/" {
		return nodeRef{kind: refRoot}, nil
	}

	cur := nodeRef{kind: refRoot}
	for _, seg := range strings.Split(strings.TrimPrefix(norm, "/"), "/") {
		if seg == "" {
			return nodeRef{}, notFound(p)
		}
		next, ok := f.childNamed(cur, seg)
		if !ok {
			return nodeRef{}, notFound(p)
		}
		cur = next
	}
	if trailingSlash && !cur.isGroup() {
		return nodeRef{}, &PathError{Path: p, Reason: "trailing slash on a dataset path"}
	}
	return cur, nil
}

func (f *File) childNamed(ref nodeRef, name string) (nodeRef, bool) {
	for _, c := range f.children(ref) {
		if c.name == name {
			return c.ref, true
		}
	}
	return nodeRef{}, false
}

// node wraps a resolved reference in its facade type. The path is
// normalized to a leading-slash form without a trailing slash.
func (f *File) node(p string, ref nodeRef) Node {
	norm := cleanPath(p)
	if ref.isGroup() {
		return &Group{file: f, path: norm, ref: ref}
	}
	return &Dataset{file: f, path: norm, ref: ref}
}

func cleanPath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}
