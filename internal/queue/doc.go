// Package queue persists dubbing tasks in SQLite and provides the claim,
// heartbeat, and maintenance operations the workflow manager relies on.
package queue
