// Package interaction polls published posts for comments and answers the ones
// worth answering.
//
// Each comment is recorded exactly once per (platform, comment id). Sentiment
// comes from keyword rules; positive, question, and thoughtful comments get a
// templated reply chosen by rotation, subject to a per-platform hourly quota.
// Negative, spam, and neutral comments are recorded and left unanswered.
package interaction
