// Package assembly reads and writes just enough of the PE and ECMA-335
// metadata formats to classify binaries and to carry encrypted payloads as
// manifest resources of a minimal managed image.
//
// Images are only ever parsed, never loaded. Reading goes through
// github.com/saferwall/pe, and malformed input yields ErrInvalidImage.
package assembly
