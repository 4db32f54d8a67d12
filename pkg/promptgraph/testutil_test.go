package promptgraph

import (
	"io"
	"log/slog"
	"testing"

	"github.com/randalmurphal/promptgraph/pkg/promptgraph/llm"
	"github.com/stretchr/testify/require"
)

// testLLM is a valid LLM payload.
var testLLM = LLMData{Temperature: 0.7, MaxTokens: 150}

// discardLogger drops all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildGraph adds nodes, then connects each pair [source, target].
func buildGraph(t *testing.T, nodes []Node, edges ...[2]string) *Graph {
	t.Helper()
	g := NewGraph()
	for _, n := range nodes {
		require.NoError(t, g.AddNode(n))
	}
	for _, e := range edges {
		require.NoError(t, g.Connect(e[0], e[1]))
	}
	return g
}

// pipelineGraph is start -> prompt -> model -> out.
func pipelineGraph(t *testing.T, text string) *Graph {
	t.Helper()
	return buildGraph(t,
		[]Node{
			NewStart("start", "pipeline"),
			NewTextPrompt("prompt", text),
			NewLLM("model", testLLM),
			NewOutput("out"),
		},
		[2]string{"start", "prompt"},
		[2]string{"prompt", "model"},
		[2]string{"model", "out"},
	)
}

// testEngine creates an engine with no settle delay and a silent logger.
func testEngine(g *Graph, client llm.Client, opts ...Option) *Engine {
	base := []Option{WithSettleDelay(0), WithLogger(discardLogger())}
	return NewEngine(g, client, append(base, opts...)...)
}

func status(t *testing.T, g *Graph, id string) Status {
	t.Helper()
	n, ok := g.Node(id)
	require.True(t, ok, "node %s", id)
	return n.Status
}

func output(t *testing.T, g *Graph, id string) OutputData {
	t.Helper()
	n, ok := g.Node(id)
	require.True(t, ok, "node %s", id)
	d := n.Output()
	require.NotNil(t, d, "node %s is not an output", id)
	return *d
}
