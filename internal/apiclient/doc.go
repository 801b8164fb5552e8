// Package apiclient is the CLI side of the daemon HTTP API.
package apiclient
