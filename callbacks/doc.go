// Package callbacks provides observers of the assistant loop:
// a console printer, a package logger, a per-query scratchpad and a fanout.
package callbacks
