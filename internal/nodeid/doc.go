// internal/nodeid/doc.go

/*
Package nodeid provides a structured, type-safe representation for task
graph node identifiers, in the canonical format `name` or `name[index]`.

The graph builder mints one Address per task invocation; this package
centralizes that formatting so every Address.String() call produces the
same id shape.
*/
package nodeid
