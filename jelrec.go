// Package jelrec is a schema-driven record storage layer. A record type is
// described once, as a field tree with storage metadata, and every backend
// stores it the same way: the relational backend in the mysql sub-package,
// the document backend in the surreal sub-package, and the in-memory backend
// in the inmem sub-package.
//
// The root package holds everything that is backend-independent: field
// cleaning and validation via the schema sub-package, per-record dirty
// tracking, optimistic-concurrency revision tokens, structural diffs for
// change logs, and the filter language backends translate to their native
// query forms. A Registry names the storage hosts and applies a
// database-name prefix; a Table binds one record type to it and produces
// Records.
//
// Typical use loads a schema, builds the Struct, and goes through a Table:
//
//	tree, err := schema.Load("user.json")
//	if err != nil {
//		return err
//	}
//	st, err := jelrec.NewStruct(tree)
//	if err != nil {
//		return err
//	}
//
//	reg := jelrec.NewRegistry("myapp_", log)
//	reg.AddHost("primary", openPrimary, false)
//
//	users := jelrec.NewTable(reg, st)
//	u, err := users.New(map[string]any{"email": "x@example.com"})
//	if err != nil {
//		return err
//	}
//	if _, err := u.Create(ctx); err != nil {
//		return err
//	}
package jelrec
