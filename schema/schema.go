// Package schema provides declarative field-tree descriptions of record
// types. A Tree names the ordered fields of a record type, the type and
// constraints of each field, and backend-specific metadata carried in special
// sections. Trees are built programmatically with New or loaded from HuJSON
// documents with Load, so schema files on disk can carry comments.
//
// The record layer itself never interprets raw values; it asks the Tree to
// validate and clean them. Clean is idempotent: cleaning an already-clean
// value returns it unchanged.
package schema

import (
	"fmt"
	"strings"
)

// Type enumerates the kinds of values a leaf field can hold.
type Type int

const (
	Any Type = iota
	Bool
	Int
	UInt
	Float
	Decimal
	Price
	Date
	Datetime
	Time
	Timestamp
	String
	Base64
	UUID
	MD5
	JSON
	IP
	Array
)

var typeNames = map[Type]string{
	Any:       "any",
	Bool:      "bool",
	Int:       "int",
	UInt:      "uint",
	Float:     "float",
	Decimal:   "decimal",
	Price:     "price",
	Date:      "date",
	Datetime:  "datetime",
	Time:      "time",
	Timestamp: "timestamp",
	String:    "string",
	Base64:    "base64",
	UUID:      "uuid",
	MD5:       "md5",
	JSON:      "json",
	IP:        "ip",
	Array:     "array",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType returns the Type named by s, or an error if s does not name one.
func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if name == strings.ToLower(s) {
			return t, nil
		}
	}
	return Any, fmt.Errorf("unknown field type %q", s)
}

// Failure is a single path-qualified validation failure.
type Failure struct {
	// Path is the path of the field that failed, e.g. "name" or "tags.0".
	Path string

	// Detail explains why the value at Path was rejected.
	Detail string
}

func (f Failure) String() string {
	return f.Path + ": " + f.Detail
}

// Node describes one field of a record type.
type Node struct {
	typ      Type
	elem     *Node
	optional bool
	options  []string
	min      *int64
	max      *int64
	special  map[string]map[string]any
}

// NodeOpts holds the optional properties of a Node for use with NewNode.
type NodeOpts struct {
	// Optional marks the field as allowed to be absent or nil.
	Optional bool

	// Options restricts string-like fields to an enumerated set of values.
	Options []string

	// Minimum and Maximum bound numeric values, or the length of string-like
	// values. Nil means unbounded on that side.
	Minimum *int64
	Maximum *int64

	// Elem describes the element type of an Array field.
	Elem *Node

	// Special carries backend-specific metadata keyed by section name, e.g.
	// "sql" for per-field column overrides.
	Special map[string]map[string]any
}

// NewNode creates a Node of the given type with the given options.
func NewNode(t Type, opts NodeOpts) *Node {
	return &Node{
		typ:      t,
		elem:     opts.Elem,
		optional: opts.Optional,
		options:  opts.Options,
		min:      opts.Minimum,
		max:      opts.Maximum,
		special:  opts.Special,
	}
}

// Type returns the type of values the node holds.
func (n *Node) Type() Type {
	return n.typ
}

// Elem returns the element node of an Array field, or nil for leaf fields.
func (n *Node) Elem() *Node {
	return n.elem
}

// Optional returns whether the field may be absent or nil.
func (n *Node) Optional() bool {
	return n.optional
}

// Options returns the enumerated values the field is restricted to, or nil if
// it is unrestricted.
func (n *Node) Options() []string {
	return n.options
}

// MinMax returns the minimum and maximum bounds of the field. Either may be
// nil, meaning unbounded on that side. For string-like fields the bounds
// apply to the value's length.
func (n *Node) MinMax() (min, max *int64) {
	return n.min, n.max
}

// Special returns the named backend-specific metadata section of the node, or
// nil if the node does not carry one by that name.
func (n *Node) Special(section string) map[string]any {
	if n.special == nil {
		return nil
	}
	return n.special[section]
}

// Tree is the declarative description of a whole record type.
type Tree struct {
	name    string
	keys    []string
	nodes   map[string]*Node
	special map[string]map[string]any
}

// New creates a Tree with the given name and fields. Field order follows the
// order of the fields slice. Special sections carry record-level metadata such
// as table and host bindings.
func New(name string, fields []Field, special map[string]map[string]any) (*Tree, error) {
	if name == "" {
		return nil, fmt.Errorf("tree name cannot be empty")
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("tree %q has no fields", name)
	}

	t := &Tree{
		name:    name,
		keys:    make([]string, 0, len(fields)),
		nodes:   make(map[string]*Node, len(fields)),
		special: special,
	}

	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("tree %q: field with empty name", name)
		}
		if _, ok := t.nodes[f.Name]; ok {
			return nil, fmt.Errorf("tree %q: duplicate field %q", name, f.Name)
		}
		if f.Node == nil {
			return nil, fmt.Errorf("tree %q: field %q has no node", name, f.Name)
		}
		t.keys = append(t.keys, f.Name)
		t.nodes[f.Name] = f.Node
	}

	return t, nil
}

// Field pairs a field name with its node for use with New.
type Field struct {
	Name string
	Node *Node
}

// Name returns the name of the record type the tree describes.
func (t *Tree) Name() string {
	return t.name
}

// Keys returns the field names of the tree in declaration order. The returned
// slice must not be modified.
func (t *Tree) Keys() []string {
	return t.keys
}

// Node returns the node for the named field and whether one exists.
func (t *Tree) Node(name string) (*Node, bool) {
	n, ok := t.nodes[name]
	return n, ok
}

// Has returns whether the tree has a field with the given name.
func (t *Tree) Has(name string) bool {
	_, ok := t.nodes[name]
	return ok
}

// Special returns the named record-level metadata section, or nil if the tree
// does not carry one by that name.
func (t *Tree) Special(section string) map[string]any {
	if t.special == nil {
		return nil
	}
	return t.special[section]
}

// Validate checks every field of values against the tree and returns all
// failures found. Unknown fields fail; required fields that are absent fail;
// present values are checked by their node. A nil return means values is
// acceptable.
func (t *Tree) Validate(values map[string]any) []Failure {
	var fails []Failure

	for name := range values {
		if !t.Has(name) {
			fails = append(fails, Failure{Path: name, Detail: "not a field of " + t.name})
		}
	}

	for _, name := range t.keys {
		n := t.nodes[name]
		v, present := values[name]

		if !present || v == nil {
			if !n.Optional() {
				fails = append(fails, Failure{Path: name, Detail: "missing required field"})
			}
			continue
		}

		fails = append(fails, n.validate(name, v)...)
	}

	return fails
}

// Clean validates values and returns a canonicalized copy: every present
// value is replaced by its canonical form. The input map is not modified.
// Cleaning is idempotent.
func (t *Tree) Clean(values map[string]any) (map[string]any, []Failure) {
	if fails := t.Validate(values); fails != nil {
		return nil, fails
	}

	out := make(map[string]any, len(values))
	for name, v := range values {
		if v == nil {
			out[name] = nil
			continue
		}
		cv, err := t.nodes[name].Clean(v)
		if err != nil {
			return nil, []Failure{{Path: name, Detail: err.Error()}}
		}
		out[name] = cv
	}

	return out, nil
}
