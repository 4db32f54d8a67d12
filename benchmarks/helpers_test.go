package benchmarks

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/randalmurphal/promptgraph/pkg/promptgraph"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// buildChain builds start -> p0 -> out0 -> out1 -> ... with n outputs.
func buildChain(n int) *promptgraph.Graph {
	g := promptgraph.NewGraph()
	mustDo(g.AddNode(promptgraph.NewStart("start", "chain")))
	mustDo(g.AddNode(promptgraph.NewTextPrompt("p0", "seed")))
	mustDo(g.Connect("start", "p0"))
	prev := "p0"
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("out%d", i)
		mustDo(g.AddNode(promptgraph.NewOutput(id)))
		mustDo(g.Connect(prev, id))
		prev = id
	}
	return g
}

// buildFanOut builds one model feeding n outputs.
func buildFanOut(n int) *promptgraph.Graph {
	g := promptgraph.NewGraph()
	mustDo(g.AddNode(promptgraph.NewStart("start", "fanout")))
	mustDo(g.AddNode(promptgraph.NewTextPrompt("prompt", "fan out to many sinks")))
	mustDo(g.AddNode(promptgraph.NewLLM("model", promptgraph.LLMData{Temperature: 0.7, MaxTokens: 150})))
	mustDo(g.Connect("start", "prompt"))
	mustDo(g.Connect("prompt", "model"))
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("sink%d", i)
		mustDo(g.AddNode(promptgraph.NewOutput(id)))
		mustDo(g.Connect("model", id))
	}
	return g
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}
