// Package schema reflects Go argument structs into JSON schemas
// used as tool parameter declarations.
package schema
