// Package cli implements the toolagent commands.
package cli
