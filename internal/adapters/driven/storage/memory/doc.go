// Package memory provides in-memory implementations of the vcsbridge stores.
// They back tests and dry runs; nothing survives the process.
// Every store is safe for concurrent use.
package memory
