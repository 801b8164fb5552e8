// Package textutil fingerprints story text as term-frequency vectors and
// compares them with cosine similarity. The fetcher uses it to spot the same
// story reworded by different sources.
package textutil
