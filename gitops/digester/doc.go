// Package digester computes SHA256 digests of file content. The local store
// uses them as content-identity tokens so a write can detect that the file
// changed after it was read.
package digester
