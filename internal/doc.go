// Package internal holds cross-cutting helpers shared by authcore and its
// subpackages: credential ID generation and the opaque refresh-token codec.
//
// # What this package must NOT do
//
//   - Access Redis or any I/O beyond crypto/rand.
//   - Import authcore or any sibling package.
package internal
