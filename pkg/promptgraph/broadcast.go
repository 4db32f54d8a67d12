package promptgraph

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/promptgraph/pkg/promptgraph/observability"
)

// Broadcaster fans one producer's streamed output out to its sinks: the
// Output nodes directly connected downstream of it.
//
// Each method is a single Graph.ApplyBatch, so every sink of a producer
// moves through the same sequence of states and no reader ever sees the
// sinks disagree.
type Broadcaster struct {
	graph   *Graph
	metrics observability.MetricsRecorder
	logger  *slog.Logger
}

// NewBroadcaster binds a broadcaster to g.
func NewBroadcaster(g *Graph) *Broadcaster {
	return &Broadcaster{graph: g, metrics: observability.NoopMetrics{}}
}

// Sinks returns the IDs of the Output nodes directly downstream of producer,
// in edge order.
func (b *Broadcaster) Sinks(producer string) []string {
	var ids []string
	for _, n := range b.graph.OutputsOf(producer) {
		if n.Kind() == KindOutput {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Reset clears the streaming state and token count of every sink so stale
// content is not shown while new output is pending. Final content is kept.
func (b *Broadcaster) Reset(producer string) error {
	return b.graph.ApplyBatch(b.Sinks(producer), func(n *Node) {
		d := n.Output()
		d.IsStreaming = false
		d.StreamedContent = ""
		d.TokenCount = nil
	})
}

// Begin marks the producer and every sink Running, and the sinks streaming.
func (b *Broadcaster) Begin(producer string) error {
	return b.graph.ApplyBatch(b.withProducer(producer), func(n *Node) {
		n.Status = StatusRunning
		n.Error = ""
		if d := n.Output(); d != nil {
			d.IsStreaming = true
			d.StreamedContent = ""
		}
	})
}

// Content publishes the cumulative streamed text to every sink.
func (b *Broadcaster) Content(producer, cumulative string) error {
	sinks := b.Sinks(producer)
	err := b.graph.ApplyBatch(sinks, func(n *Node) {
		d := n.Output()
		d.IsStreaming = true
		d.StreamedContent = cumulative
	})
	if err == nil && len(sinks) > 0 {
		b.metrics.RecordStreamChunk(context.Background(), producer, len(sinks))
		observability.LogStreamChunk(b.logger, producer, len(cumulative), len(sinks))
	}
	return err
}

// Complete writes the final text and token count to every sink, clears the
// streamed text, and marks the producer and sinks Success.
func (b *Broadcaster) Complete(producer, final string, tokenCount *int) error {
	return b.graph.ApplyBatch(b.withProducer(producer), func(n *Node) {
		n.Status = StatusSuccess
		n.Error = ""
		if d := n.Output(); d != nil {
			d.Content = final
			d.IsStreaming = false
			d.StreamedContent = ""
			if tokenCount != nil {
				c := *tokenCount
				d.TokenCount = &c
			}
		}
	})
}

// Fail marks the producer and every sink Error with the same message.
func (b *Broadcaster) Fail(producer, message string) error {
	return b.graph.ApplyBatch(b.withProducer(producer), func(n *Node) {
		n.Status = StatusError
		n.Error = message
		if d := n.Output(); d != nil {
			d.IsStreaming = false
			d.StreamedContent = ""
		}
	})
}

func (b *Broadcaster) withProducer(producer string) []string {
	return append([]string{producer}, b.Sinks(producer)...)
}
