// Package stage defines the contract between the orchestrator and the four
// stage transformers (narrative, synthesis, render, metadata), the Job envelope
// that carries an item and its predecessor artifacts, and the typed payloads
// each stage records on its artifact.
package stage
