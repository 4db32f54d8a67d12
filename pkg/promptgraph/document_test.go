package promptgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineYAML = `
name: summarize
nodes:
  - id: start
    kind: start
    workflowName: summarize
  - id: prompt
    kind: textPrompt
    text: Summarize the plot of Hamlet.
  - id: model
    kind: llmInvocation
    model: claude-sonnet-4-20250514
    systemPrompt: Answer in one paragraph.
  - id: out
    kind: output
edges:
  - {id: e1, source: start, target: prompt}
  - {id: e2, source: prompt, target: model}
  - {id: e3, source: model, target: out}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDocument_YAML(t *testing.T) {
	doc, err := LoadDocument(writeFile(t, "wf.yaml", pipelineYAML))
	require.NoError(t, err)
	assert.Equal(t, "summarize", doc.Name)
	require.Len(t, doc.Nodes, 4)
	require.Len(t, doc.Edges, 3)

	g, err := FromDocument(doc, DefaultLLMDefaults())
	require.NoError(t, err)
	require.NoError(t, Validate(g))

	n, ok := g.Node("model")
	require.True(t, ok)
	d := n.LLM()
	require.NotNil(t, d)
	assert.Equal(t, "claude-sonnet-4-20250514", d.Model)
	assert.Equal(t, "Answer in one paragraph.", d.SystemPrompt)
	assert.InDelta(t, 0.7, d.Temperature, 1e-9)
	assert.Equal(t, 150, d.MaxTokens)

	p, _ := g.Node("prompt")
	assert.Equal(t, "Summarize the plot of Hamlet.", p.Text())
}

func TestLoadDocument_JSON(t *testing.T) {
	path := writeFile(t, "wf.json", `{
		"nodes": [
			{"id": "s", "kind": "start"},
			{"id": "m", "kind": "llmInvocation", "temperature": 0, "maxTokens": 42}
		],
		"edges": []
	}`)

	doc, err := LoadDocument(path)
	require.NoError(t, err)
	g, err := FromDocument(doc, DefaultLLMDefaults())
	require.NoError(t, err)

	n, _ := g.Node("m")
	assert.Zero(t, n.LLM().Temperature, "explicit zero temperature is kept")
	assert.Equal(t, 42, n.LLM().MaxTokens)
}

func TestLoadDocument_Errors(t *testing.T) {
	_, err := LoadDocument(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadDocument(writeFile(t, "bad.yaml", "nodes: [unclosed"))
	assert.Error(t, err)
}

func TestFromDocument_Rejects(t *testing.T) {
	_, err := FromDocument(Document{Nodes: []NodeDoc{{ID: "x", Kind: "webhook"}}}, DefaultLLMDefaults())
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = FromDocument(Document{
		Nodes: []NodeDoc{{ID: "a", Kind: KindStart}},
		Edges: []Edge{{Source: "a", Target: "ghost"}},
	}, DefaultLLMDefaults())
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = FromDocument(Document{
		Nodes: []NodeDoc{{ID: "a", Kind: KindStart}, {ID: "a", Kind: KindOutput}},
	}, DefaultLLMDefaults())
	assert.ErrorIs(t, err, ErrDuplicateNode)
}

func TestToDocument_RoundTripsState(t *testing.T) {
	g := pipelineGraph(t, "round trip")
	tokens := 4
	require.NoError(t, g.ApplyUpdate("out", func(n *Node) {
		n.Status = StatusSuccess
		d := n.Output()
		d.Content = "answer"
		d.TokenCount = &tokens
	}))
	require.NoError(t, g.ApplyStatus("model", StatusError, "rate limited"))

	doc := ToDocument(g, "pipeline")
	assert.Equal(t, "pipeline", doc.Name)
	assert.Empty(t, doc.Nodes[0].Status, "idle status is omitted")

	restored, err := FromDocument(doc, DefaultLLMDefaults())
	require.NoError(t, err)
	assert.Equal(t, g.Edges(), restored.Edges())

	out := output(t, restored, "out")
	assert.Equal(t, "answer", out.Content)
	require.NotNil(t, out.TokenCount)
	assert.Equal(t, 4, *out.TokenCount)

	m, _ := restored.Node("model")
	assert.Equal(t, StatusError, m.Status)
	assert.Equal(t, "rate limited", m.Error)
	assert.Equal(t, StatusIdle, status(t, restored, "start"))
}
