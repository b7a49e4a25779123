// Package services defines the shared error taxonomy used by pipeline
// stages so the orchestrator and CLI can classify failures without string
// matching.
package services
