/*
Package promptgraph executes graphs of prompt, model and output nodes.

# Overview

A workflow is a directed graph of four node kinds:

  - start: the trigger. It is always ready and succeeds after a short
    settle delay.
  - textPrompt: authored text with an undo/redo history.
  - llmInvocation: sends the joined text of its inputs to a model service
    and streams the answer.
  - output: displays text. An output fed by a model node receives that
    node's stream; any other output copies its inputs' text.

The Graph is the single source of truth. It is shared by the engine, the
executors and any observer, and every write is atomic.

# Running

The engine advances in ticks. Each tick it takes a fresh snapshot, finds
the nodes whose inputs have all succeeded, and executes them concurrently.
A run ends when nothing is ready:

	g := promptgraph.NewGraph()
	_ = g.AddNode(promptgraph.NewStart("start", "demo"))
	_ = g.AddNode(promptgraph.NewTextPrompt("prompt", "Name three rivers."))
	_ = g.AddNode(promptgraph.NewLLM("model", promptgraph.LLMData{Temperature: 0.7, MaxTokens: 150}))
	_ = g.AddNode(promptgraph.NewOutput("out"))
	_ = g.Connect("start", "prompt")
	_ = g.Connect("prompt", "model")
	_ = g.Connect("model", "out")

	engine := promptgraph.NewEngine(g, llm.NewClaudeCLI())
	result, err := engine.Run(ctx)
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(result.Status) // "completed"

Node failures do not stop the run: the failed node is marked with an error
and its dependents are never scheduled. Result.Status is then
RunErrored. Run returns an error only for a missing start node
(*NoStartNodeError), a cycle or unreachable node (*CyclicGraphError), a
fatal checkpoint failure, or an abort (*CancellationError).

# Streaming

A model node's output is broadcast to every output node directly connected
downstream of it. All sinks of one producer are updated in a single graph
write per chunk, so they always show the same text.

# Observability

Structured logs go to the engine's slog.Logger. WithMetrics and
WithTracing enable OpenTelemetry instruments and spans through the global
providers. WithEventBus publishes run and node events; WithCheckpointStore
saves the graph after every tick.
*/
package promptgraph
