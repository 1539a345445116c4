// Package vm implements the cellvm runtime core.
//
// This package contains:
//   - the tagged Cell value word and the heap Object layout
//   - the static singletons (booleans, built-in datatype markers)
//   - the GC allocator and mark-and-sweep collector
//   - the arity-dispatched function table
//   - the accumulator/register bytecode interpreter
//   - Worker and Pool for running independent States concurrently
package vm
