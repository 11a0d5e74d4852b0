package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/playcheck/internal/models"
)

func TestMarkdownExtract(t *testing.T) {
	content := strings.Join([]string{
		"# Title",
		"",
		"Some prose.",
		"",
		"```go",
		"x := 1",
		"fmt.Println(x) // 1",
		"```",
		"",
		"```python",
		"print(1)",
		"```",
		"",
		"Done.",
	}, "\n") + "\n"

	doc := NewMarkdownParser(DefaultConventions()).Extract("guide.md", content)
	require.Len(t, doc.Blocks, 4)

	intro := doc.Blocks[0]
	assert.Equal(t, models.KindProse, intro.Kind)
	assert.Equal(t, models.LineRange{Start: 1, End: 3}, intro.Lines)
	assert.Equal(t, "# Title\n\nSome prose.", intro.Text)

	assert.Equal(t, models.KindCode, doc.Blocks[1].Kind)
	assert.Equal(t, "x := 1", doc.Blocks[1].Source)
	assert.Equal(t, models.LineRange{Start: 6, End: 6}, doc.Blocks[1].Lines)

	assert.Equal(t, "fmt.Println(x)", doc.Blocks[2].Source)
	assert.Equal(t, []string{"1"}, doc.Blocks[2].Expected())
	assert.Equal(t, models.LineRange{Start: 7, End: 7}, doc.Blocks[2].Lines)

	// the python fence is not a snippet
	outro := doc.Blocks[3]
	assert.Equal(t, models.KindProse, outro.Kind)
	assert.Equal(t, models.LineRange{Start: 10, End: 14}, outro.Lines)
	assert.Contains(t, outro.Text, "print(1)")

	assert.Empty(t, doc.Anomalies)
	for i, b := range doc.Blocks {
		assert.Equal(t, i+1, b.Ordinal)
	}
}

func TestMarkdownFenceLanguage(t *testing.T) {
	content := "```Go\na := 1\n```\n\n```swift\nlet b = 2\n```\n"

	t.Run("case insensitive match", func(t *testing.T) {
		doc := NewMarkdownParser(DefaultConventions()).Extract("a.md", content)
		code := doc.CodeBlocks()
		require.Len(t, code, 1)
		assert.Equal(t, "a := 1", code[0].Source)
	})

	t.Run("empty language selects every fence", func(t *testing.T) {
		conv := DefaultConventions()
		conv.FenceLanguage = ""
		doc := NewMarkdownParser(conv).Extract("a.md", content)
		code := doc.CodeBlocks()
		require.Len(t, code, 2)
		assert.Equal(t, []string{"b"}, code[1].DeclaredBindings)
		assert.Equal(t, 6, code[1].Lines.Start)
	})
}

func TestMarkdownUnterminatedFence(t *testing.T) {
	doc := NewMarkdownParser(DefaultConventions()).Extract("a.md", "Intro\n```go\nx := 1 // 1\n")

	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, models.KindProse, doc.Blocks[0].Kind)
	assert.Equal(t, "x := 1", doc.Blocks[1].Source)
	assert.Equal(t, 3, doc.Blocks[1].Lines.Start)

	require.Len(t, doc.Anomalies, 1)
	assert.Equal(t, models.AnomalyUnterminatedFence, doc.Anomalies[0].Kind)
	assert.Equal(t, 2, doc.Anomalies[0].Line)
}

func TestMarkdownCommentInsideFence(t *testing.T) {
	// an unterminated comment is closed off at the end of its fence
	content := "```go\n/* open\n```\n\n```go\ny := 2 // 2\n```\n"
	doc := NewMarkdownParser(DefaultConventions()).Extract("a.md", content)

	code := doc.CodeBlocks()
	require.Len(t, code, 1)
	assert.Equal(t, []string{"2"}, code[0].Expected())

	require.Len(t, doc.Anomalies, 1)
	assert.Equal(t, models.AnomalyUnterminatedComment, doc.Anomalies[0].Kind)
	assert.Equal(t, 2, doc.Anomalies[0].Line)
}

func TestExtractDispatchesOnExtension(t *testing.T) {
	text := "```go\nx := 1\n```\n"

	md := Extract("notes.md", text, DefaultConventions())
	require.Len(t, md.CodeBlocks(), 1)
	assert.Equal(t, "x := 1", md.CodeBlocks()[0].Source)

	plain := Extract("notes.txt", text, DefaultConventions())
	code := plain.CodeBlocks()
	require.Len(t, code, 1)
	assert.Equal(t, "```go\nx := 1\n```", code[0].Source)
}
