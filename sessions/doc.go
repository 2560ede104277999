// Package sessions defines the session bag contract the blitzware middleware
// runs on, plus a cookie-binding Manager that ties browser requests to stored
// session records. Backend implementations live in the memory and valkey
// subpackages; any store with load/save/delete semantics can be plugged in.
package sessions
