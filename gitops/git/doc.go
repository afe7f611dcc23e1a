// Package git defines the contract between the image updater and a git
// hosting platform.
//
// The Store interface covers what the updater needs on a single repository
// branch. It lists the root entries and reads a file together with its
// content-identity token. Writes go back as a commit guarded by that token.
// Implementations for GitHub, GitLab, Bitbucket Server and a local directory
// live in sub-packages. Repo drives a local work tree through the git CLI.
package git
