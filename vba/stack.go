// Package vba implements the VBA P-code decompiler: module loading across
// the 97+ and "5x" header shapes (C9) and the per-line opcode dispatcher
// that renders readable VBA source (C10).
package vba

import "strings"

// StackItem is one entry on the expression stack (spec §4.10).
type StackItem struct {
	Kind  StackItemKind
	Plain string
}

type StackItemKind int

const (
	KindPlain StackItemKind = iota
	KindCase
	KindArrNil
)

func plain(s string) StackItem { return StackItem{Kind: KindPlain, Plain: s} }
func caseItem(s string) StackItem { return StackItem{Kind: KindCase, Plain: s} }

// exprStack is the mutable expression stack a line decompiler pushes to and
// pops from while dispatching opcodes.
type exprStack struct {
	items []StackItem
}

func (s *exprStack) push(it StackItem) { s.items = append(s.items, it) }

func (s *exprStack) pushPlain(v string) { s.push(plain(v)) }

// pop returns a placeholder on underflow rather than panicking, so
// malformed P-code degrades to readable-but-wrong output instead of
// crashing the whole module (spec §4.10 "Stack safety").
func (s *exprStack) pop(placeholder string) StackItem {
	if len(s.items) == 0 {
		return plain(placeholder)
	}
	it := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return it
}

func (s *exprStack) popVar() string  { return s.pop("UnkVar").Plain }
func (s *exprStack) popObj() string  { return s.pop("UnkObj").Plain }
func (s *exprStack) popVal() string  { return s.pop("UnkVal").Plain }
func (s *exprStack) popProp() string { return s.pop("UnkProp").Plain }

func (s *exprStack) render() string {
	parts := make([]string, len(s.items))
	for i, it := range s.items {
		parts[i] = it.Plain
	}
	return strings.Join(parts, " ")
}

// labelQueue accumulates label/line-number prefixes for the current line.
type labelQueue struct {
	labels []string
}

func (q *labelQueue) push(l string) { q.labels = append(q.labels, l) }

func (q *labelQueue) render() string { return strings.Join(q.labels, " ") }
