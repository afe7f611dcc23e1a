// Package updater bumps container image versions in the root-level YAML
// manifests of a git repository.
//
// For each .yaml or .yml file at the repository root the Service reads the
// content, locates the spec.template.spec.containers sequence, rewrites every
// container whose image name equals the requested one to "image:version" and
// commits the file back through a git.Store. Files that cannot be parsed or do
// not carry the expected structure are skipped without aborting the run.
//
// The image name is everything before the last colon of the reference, so
// "registry:5000/app:1.0" has name "registry:5000/app" and tag "1.0".
package updater
