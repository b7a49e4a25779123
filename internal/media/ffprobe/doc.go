// Package ffprobe wraps the ffprobe binary for media inspection. The
// pipeline uses it to validate downloads and to size the reframe and
// caption filters.
package ffprobe
