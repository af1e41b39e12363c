package executor

import (
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileBlocks(t *testing.T) {
	output := "I'll create the files now.\n\n" +
		"```tsx file=src/App.tsx\n" +
		"export default function App() {\n  return <div/>;\n}\n" +
		"```\n\n" +
		"Some commentary between blocks.\n\n" +
		"```file=package.json\n" +
		"{\"name\": \"demo\"}\n" +
		"```\n"

	blocks := ParseFileBlocks(output)
	require.Len(t, blocks, 2)

	assert.Equal(t, "src/App.tsx", blocks[0].Path)
	assert.False(t, blocks[0].Patch)
	assert.Contains(t, blocks[0].Content, "export default function App()")

	assert.Equal(t, "package.json", blocks[1].Path)
	assert.Equal(t, "{\"name\": \"demo\"}", blocks[1].Content)
}

func TestParseFileBlocksPatchTag(t *testing.T) {
	output := "```patch file=src/server.ts\n@@ -1,1 +1,1 @@\n```\n"
	blocks := ParseFileBlocks(output)
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].Patch)
	assert.Equal(t, "src/server.ts", blocks[0].Path)
}

func TestParseFileBlocksIgnoresPlainFences(t *testing.T) {
	output := "```js\nconsole.log('not a file block');\n```\n"
	assert.Empty(t, ParseFileBlocks(output))
}

func TestParseFileBlocksUnterminatedFenceDropped(t *testing.T) {
	output := "```file=a.txt\ncontent without closing fence"
	assert.Empty(t, ParseFileBlocks(output))
}

func TestApplyPatchRoundTrip(t *testing.T) {
	original := "const a = 1;\nconst b = 2;\nconst c = 3;\n"
	modified := "const a = 1;\nconst b = 42;\nconst c = 3;\n"

	dmp := diffmatchpatch.New()
	patchText := dmp.PatchToText(dmp.PatchMake(original, modified))

	got, err := ApplyPatch(original, patchText)
	require.NoError(t, err)
	assert.Equal(t, modified, got)
}

func TestApplyPatchRejectsGarbage(t *testing.T) {
	_, err := ApplyPatch("content", "this is not a patch @@")
	assert.Error(t, err)
}
