// Package xlog provides the package-wide logging hook used by cfb, doc and vba.
//
// It mirrors the teacher's logger package: a tiny interface over the standard
// log.Logger, defaulting to a discarded sink so that importing olecore never
// produces output unless a caller opts in.
package xlog

import (
	"io"
	"log"
)

// Logger is the minimal logging surface olecore depends on.
type Logger interface {
	Printf(format string, v ...interface{})
}

var (
	// L carries structural trace messages (anomalies, sector/offset bookkeeping).
	L Logger = log.New(io.Discard, "[olecore] ", log.LstdFlags)

	// D carries verbose decode traces (per-field dumps, opcode dispatch).
	D Logger = log.New(io.Discard, "[olecore debug] ", log.LstdFlags)
)

// SetLogger installs the logger used for structural trace messages.
func SetLogger(l Logger) { L = l }

// SetDebugLogger installs the logger used for verbose decode traces.
func SetDebugLogger(l Logger) { D = l }
