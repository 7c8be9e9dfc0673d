package jelrec

import (
	"fmt"

	"github.com/dekarrin/jelrec/internal/sortby"
	"github.com/dekarrin/jelrec/schema"
)

// DefaultRevisionField is the name revisions are stored under when the
// schema does not pick one.
const DefaultRevisionField = "_rev"

// Index is one secondary index of a record type's table.
type Index struct {
	Name   string
	Unique bool
	Fields []string
}

// Struct is a record type's resolved structure: the schema tree plus the
// storage metadata read from the tree's "record" special section. It is
// immutable once built; a Table binds it to a backend.
type Struct struct {
	// Tree is the field tree the record type validates against.
	Tree *schema.Tree

	// Host is the logical name of the host records are stored on.
	Host string

	// DB is the database (or document-store namespace) records live in,
	// without any registry prefix applied.
	DB string

	// Table is the table or collection name.
	Table string

	// Primary is the name of the primary-key field.
	Primary string

	// AutoPrimary is whether the backend generates the primary key. When
	// AutoPrimaryExpr is empty the generation is the backend's native
	// sequence (auto-increment); otherwise it is the backend expression to
	// evaluate, e.g. "UUID()".
	AutoPrimary     bool
	AutoPrimaryExpr string

	// Revisions is whether the record type carries optimistic-concurrency
	// revision tokens, stored under RevField.
	Revisions bool
	RevField  string

	// Changes is whether every create/save/delete appends an entry to the
	// sibling change-log table. ChangesFields lists extra fields each change
	// payload must supply, if any.
	Changes       bool
	ChangesFields []string

	// Indexes are the secondary indexes created by TableCreate.
	Indexes []Index
}

// NewStruct resolves the storage metadata of the given tree. The tree's
// "record" special section supplies: host, db, table, primary, auto_primary
// (true or an expression string), revisions (true or a field name), changes
// (true or a list of required payload fields), and indexes.
func NewStruct(tree *schema.Tree) (*Struct, error) {
	st := &Struct{
		Tree:     tree,
		Host:     "primary",
		Table:    tree.Name(),
		Primary:  "id",
		RevField: DefaultRevisionField,
	}

	sec := tree.Special("record")

	if v, ok := sec["host"].(string); ok && v != "" {
		st.Host = v
	}
	if v, ok := sec["db"].(string); ok {
		st.DB = v
	}
	if v, ok := sec["table"].(string); ok && v != "" {
		st.Table = v
	}
	if v, ok := sec["primary"].(string); ok && v != "" {
		st.Primary = v
	}

	switch v := sec["auto_primary"].(type) {
	case nil:
	case bool:
		st.AutoPrimary = v
	case string:
		st.AutoPrimary = true
		st.AutoPrimaryExpr = v
	default:
		return nil, fmt.Errorf("%s: auto_primary must be a bool or an expression string", tree.Name())
	}

	switch v := sec["revisions"].(type) {
	case nil:
	case bool:
		st.Revisions = v
	case string:
		st.Revisions = true
		st.RevField = v
	default:
		return nil, fmt.Errorf("%s: revisions must be a bool or a field name", tree.Name())
	}

	switch v := sec["changes"].(type) {
	case nil:
	case bool:
		st.Changes = v
	case []any:
		st.Changes = true
		for _, f := range v {
			name, ok := f.(string)
			if !ok {
				return nil, fmt.Errorf("%s: changes field list must hold strings", tree.Name())
			}
			st.ChangesFields = append(st.ChangesFields, name)
		}
	default:
		return nil, fmt.Errorf("%s: changes must be a bool or a field list", tree.Name())
	}

	if idxSec, ok := sec["indexes"].(map[string]any); ok {
		for _, name := range sortedKeys(idxSec) {
			idx, err := parseIndex(name, idxSec[name])
			if err != nil {
				return nil, fmt.Errorf("%s: index %q: %w", tree.Name(), name, err)
			}
			st.Indexes = append(st.Indexes, idx)
		}
	}

	if !tree.Has(st.Primary) {
		return nil, fmt.Errorf("%s: primary key %q is not a field of the tree", tree.Name(), st.Primary)
	}
	if tree.Has(st.RevField) {
		return nil, fmt.Errorf("%s: revision field %q must not be declared in the tree", tree.Name(), st.RevField)
	}
	for _, idx := range st.Indexes {
		for _, f := range idx.Fields {
			if !tree.Has(f) {
				return nil, fmt.Errorf("%s: index %q names unknown field %q", tree.Name(), idx.Name, f)
			}
		}
	}

	return st, nil
}

// parseIndex reads one index definition. The value may be nil (index on the
// field named like the index), a field name, a list of field names, or a
// {"unique": fields} mapping.
func parseIndex(name string, v any) (Index, error) {
	idx := Index{Name: name}

	switch tv := v.(type) {
	case nil:
		idx.Fields = []string{name}
	case string:
		idx.Fields = []string{tv}
	case []any:
		fields, err := stringList(tv)
		if err != nil {
			return idx, err
		}
		idx.Fields = fields
	case map[string]any:
		uv, ok := tv["unique"]
		if !ok {
			return idx, fmt.Errorf("index mapping must use the \"unique\" key")
		}
		idx.Unique = true
		switch fv := uv.(type) {
		case nil:
			idx.Fields = []string{name}
		case string:
			idx.Fields = []string{fv}
		case []any:
			fields, err := stringList(fv)
			if err != nil {
				return idx, err
			}
			idx.Fields = fields
		default:
			return idx, fmt.Errorf("unique index fields must be a name or a list")
		}
	default:
		return idx, fmt.Errorf("index definition must be a name, a list, or a unique mapping")
	}

	return idx, nil
}

func stringList(items []any) ([]string, error) {
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("field list must hold strings, not %T", item)
		}
		out[i] = s
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return sortby.Strings(keys)
}
