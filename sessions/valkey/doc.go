// Package valkey provides a Valkey-backed session store for multi-instance
// deployments. Records are stored as JSON values under a configurable key
// prefix with a TTL derived from the record's expiry, so Valkey itself
// handles expiration.
package valkey
