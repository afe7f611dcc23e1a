package updater

// Exported aliases for testing internal functions from
// the updater_test package.

// DecodeManifestForTest exposes decodeManifest.
var DecodeManifestForTest = decodeManifest

// LocateContainersForTest exposes locateContainers.
var LocateContainersForTest = locateContainers

// ErrMultipleDocuments exposes errMultipleDocuments.
var ErrMultipleDocuments = errMultipleDocuments

// ErrNoContainers exposes errNoContainers.
var ErrNoContainers = errNoContainers

// ErrNotMapping exposes errNotMapping.
var ErrNotMapping = errNotMapping

// EncodeManifestForTest exposes encodeManifest.
var EncodeManifestForTest = encodeManifest
