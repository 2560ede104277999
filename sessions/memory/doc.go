// Package memory provides an in-memory session store for development, tests,
// and single-process deployments. Expired records are swept by a background
// goroutine; call Close to stop it.
package memory
