// Package github implements a git.Store over the GitHub contents API (cloud
// or enterprise). Configure with a Config containing the repository owner,
// name, branch, and access token. Set EnterpriseHost for GitHub Enterprise
// installations.
package github
