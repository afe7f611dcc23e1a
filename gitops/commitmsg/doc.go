// Package commitmsg renders commit messages from a small placeholder
// template. The image updater passes the requested image, the target version
// and the manifest path, so operators can shape messages for their own
// review conventions.
package commitmsg
