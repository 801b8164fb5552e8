// Command reelcast is the operator CLI: one-shot pipeline runs, the daemon,
// status, scheduled units, content logs, interactions, and configuration.
package main
