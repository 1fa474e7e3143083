// Package foldername encodes and decodes the edition block carried at the end
// of a folder name:
//
//	<base> {edition-<value> - <value> - ...}
//
// The block prefix is matched case-insensitively and the closing brace must be
// the last byte of the name. The base is always trimmed of trailing whitespace.
package foldername

import (
	"strings"
)

const (
	// BlockPrefix opens an edition block.
	BlockPrefix = "{edition-"
	// BlockSuffix closes an edition block.
	BlockSuffix = "}"
)

// Parts is a folder name split into its base and optional block text.
type Parts struct {
	Base     string
	Block    string
	HasBlock bool
}

// Decode splits name into base and block text. A name without a trailing
// block decodes to the name itself with HasBlock false.
func Decode(name string) Parts {
	start, ok := blockStart(name)
	if !ok {
		return Parts{Base: name}
	}

	return Parts{
		Base:     strings.TrimRight(name[:start], " \t"),
		Block:    name[start+len(BlockPrefix) : len(name)-len(BlockSuffix)],
		HasBlock: true,
	}
}

// Encode joins the parts back into a folder name. The block is appended to the
// trimmed base with a single space; without a block the trimmed base is returned.
func Encode(p Parts) string {
	base := strings.TrimRight(p.Base, " \t")
	if !p.HasBlock {
		return base
	}
	return base + " " + BlockPrefix + p.Block + BlockSuffix
}

// WithBlock returns the folder name for base carrying block text.
func WithBlock(base, block string) string {
	return Encode(Parts{Base: base, Block: block, HasBlock: true})
}

// Strip returns name with any trailing block removed.
func Strip(name string) string {
	return Encode(Parts{Base: Decode(name).Base})
}

// blockStart returns the byte offset of the block prefix when name ends with a
// well-formed block. The block is the last prefix occurrence; its body may not
// contain braces.
func blockStart(name string) (int, bool) {
	if !strings.HasSuffix(name, BlockSuffix) {
		return 0, false
	}

	start := lastIndexFold(name, BlockPrefix)
	if start < 0 {
		return 0, false
	}

	body := name[start+len(BlockPrefix) : len(name)-len(BlockSuffix)]
	if strings.ContainsAny(body, "{}") {
		return 0, false
	}
	return start, true
}

// lastIndexFold is strings.LastIndex with ASCII case folding. The prefix is
// ASCII, so byte offsets stay valid for any UTF-8 name.
func lastIndexFold(s, substr string) int {
	for i := len(s) - len(substr); i >= 0; i-- {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}
