package executor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// FileBlock is a single extracted file from model output.
type FileBlock struct {
	Path    string
	Content string
	// Patch marks a diff-based block applied to the file's current content
	// instead of replacing it wholesale.
	Patch bool
}

var fenceOpenRe = regexp.MustCompile("^```(\\w*)\\s*file=(\\S+)")

// ParseFileBlocks extracts fenced code blocks annotated with file= from
// model output. It recognizes opening fences like:
//
//	```tsx file=src/App.tsx
//	```file=package.json
//	```patch file=src/server.ts
//
// Blocks are returned in order of appearance; a "patch" language tag marks
// the block as a diff to apply.
func ParseFileBlocks(text string) []FileBlock {
	lines := strings.Split(text, "\n")
	var blocks []FileBlock
	var current *FileBlock
	var buf strings.Builder

	for _, line := range lines {
		if current != nil {
			trimmed := strings.TrimSpace(line)
			if trimmed == "```" {
				current.Content = buf.String()
				blocks = append(blocks, *current)
				current = nil
				buf.Reset()
				continue
			}
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(line)
			continue
		}

		m := fenceOpenRe.FindStringSubmatch(strings.TrimSpace(line))
		if m != nil {
			current = &FileBlock{Path: m[2], Patch: strings.EqualFold(m[1], "patch")}
			buf.Reset()
		}
	}

	return blocks
}

// ApplyPatch applies a diff-match-patch text patch to existing content.
func ApplyPatch(existing, patchText string) (string, error) {
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		return "", fmt.Errorf("parse patch: %w", err)
	}
	result, applied := dmp.PatchApply(patches, existing)
	for i, ok := range applied {
		if !ok {
			return "", fmt.Errorf("patch hunk %d did not apply", i+1)
		}
	}
	return result, nil
}
