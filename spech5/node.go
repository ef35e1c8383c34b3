package spech5

import "path"

// NodeKind discriminates the closed node variant: every node in the
// virtual tree is either a Group or a Dataset.
type NodeKind int

const (
	KindGroup NodeKind = iota
	KindDataset
)

func (k NodeKind) String() string {
	if k == KindGroup {
		return "group"
	}
	return "dataset"
}

// Dtype is the element type of a materialized dataset value.
type Dtype int

const (
	DtypeString Dtype = iota
	DtypeFloat32
	DtypeFloat64
)

func (d Dtype) String() string {
	switch d {
	case DtypeString:
		return "string"
	case DtypeFloat32:
		return "float32"
	default:
		return "float64"
	}
}

// Node is a group or dataset in the virtual hierarchy. Concrete types
// are *Group and *Dataset only; switch on Kind.
type Node interface {
	Kind() NodeKind
	Name() string
	Path() string
	Attrs() map[string]string
}

// Group is a named, ordered collection of child nodes. Groups are
// stateless views over the backing scan data: two lookups of the same
// path yield equivalent but distinct values.
type Group struct {
	file *File
	path string
	ref  nodeRef
}

func (g *Group) Kind() NodeKind { return KindGroup }

func (g *Group) Path() string { return g.path }

func (g *Group) Name() string {
	if g.path == "/" {
		return "/"
	}
	return path.Base(g.path)
}

// Attrs returns the fixed attribute set for this node kind.
func (g *Group) Attrs() map[string]string {
	return attrsFor(g.ref)
}

// Keys lists immediate child names in canonical order.
func (g *Group) Keys() []string {
	children := g.file.children(g.ref)
	keys := make([]string, len(children))
	for i, c := range children {
		keys[i] = c.name
	}
	return keys
}

// Len returns the number of immediate children.
func (g *Group) Len() int {
	return len(g.file.children(g.ref))
}

// Contains reports whether name resolves relative to this group.
// Multi-segment and absolute paths are accepted; the check runs the
// same resolution as Get.
func (g *Group) Contains(name string) bool {
	_, err := g.file.resolve(g.join(name))
	return err == nil
}

// Get resolves a child by immediate name, relative path, or absolute
// path (leading slash resolves from the file root).
func (g *Group) Get(name string) (Node, error) {
	full := g.join(name)
	ref, err := g.file.resolve(full)
	if err != nil {
		return nil, err
	}
	return g.file.node(full, ref), nil
}

// Group resolves a child and requires it to be a group.
func (g *Group) Group(name string) (*Group, error) {
	n, err := g.Get(name)
	if err != nil {
		return nil, err
	}
	sub, ok := n.(*Group)
	if !ok {
		return nil, &PathError{Path: n.Path(), Reason: "not a group"}
	}
	return sub, nil
}

// Dataset resolves a child and requires it to be a dataset.
func (g *Group) Dataset(name string) (*Dataset, error) {
	n, err := g.Get(name)
	if err != nil {
		return nil, err
	}
	ds, ok := n.(*Dataset)
	if !ok {
		return nil, &PathError{Path: n.Path(), Reason: "not a dataset"}
	}
	return ds, nil
}

func (g *Group) join(name string) string {
	if len(name) > 0 && name[0] == '/' {
		return name
	}
	if g.path == "/" {
		return "/" + name
	}
	return g.path + "/" + name
}

// Dataset is a leaf node holding a scalar string/number or a numeric
// array. The value is computed on first read and cached in the backing
// file, shared between aliased paths.
type Dataset struct {
	file *File
	path string
	ref  nodeRef
}

func (d *Dataset) Kind() NodeKind { return KindDataset }

func (d *Dataset) Path() string { return d.path }

func (d *Dataset) Name() string { return path.Base(d.path) }

// Attrs returns the fixed attribute set for this node kind.
func (d *Dataset) Attrs() map[string]string {
	return attrsFor(d.ref)
}

// Dtype returns the element type of the dataset value.
func (d *Dataset) Dtype() Dtype {
	return dtypeFor(d.ref)
}

// Shape returns the dataset dimensions: empty for scalars, one entry
// per axis otherwise.
func (d *Dataset) Shape() []int {
	return d.file.shape(d.ref)
}

// Read materializes the dataset value: string, float32,
// []float32, []float64 or [][]float64 depending on the node.
// Repeated reads return the same cached value.
func (d *Dataset) Read() (any, error) {
	return d.file.value(d.path, d.ref)
}

// attrsFor is the fixed attribute table: always the same literal set
// per node kind, regenerated per call.
func attrsFor(ref nodeRef) map[string]string {
	switch ref.kind {
	case refRoot:
		return map[string]string{"NX_class": "NXroot"}
	case refScan:
		return map[string]string{"NX_class": "NXentry"}
	case refMCAData:
		return map[string]string{"interpretation": "spectrum"}
	default:
		return map[string]string{}
	}
}
