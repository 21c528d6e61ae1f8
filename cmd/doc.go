// Package cmd implements the command-line interface of memdoc. Every
// command loads a data file into a fresh in-process collection and then
// works on it.
//
// The package is organized into several subpackages:
//
//   - data: query, check, export and stats on a loaded data file
//   - perf: in-process benchmarks of the collection operations
//   - util: shared flag handling, loading and rendering (internal use)
//
// See memdoc -help for a list of all commands.
package cmd
