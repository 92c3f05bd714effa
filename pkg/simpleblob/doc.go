// Package simpleblob provides a reusable blob-storage adapter that maps a
// host's blobs (a content UUID plus a file extension) onto a remote object
// store with CDN-backed public URLs.
//
// A Provider is built with New and a remote.Driver (in-memory, S3 or MinIO
// drivers live under remote/). Initialize reads a string-keyed settings map,
// authenticates and resolves the configured container through a
// ResourceChain, and refuses to serve traffic when the container is missing
// or not CDN-enabled.
//
// Object Naming
//
// Every operation addresses its object through an objectkey.Namer. The
// default namer derives lower(id) + lower(extension), so a blob's identity
// alone decides where it lives.
//
// Failure Handling
//
// Writes propagate remote errors as *StorageError. Reads degrade: a missing
// or unreadable object is reported to the FailureSink and surfaces as
// absence (false, nil stream, or the configured MissingURLPolicy result).
package simpleblob
