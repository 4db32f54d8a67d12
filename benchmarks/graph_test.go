package benchmarks

import (
	"fmt"
	"testing"

	"github.com/randalmurphal/promptgraph/pkg/promptgraph"
)

// BenchmarkSnapshot_100 copies a 100-node graph.
func BenchmarkSnapshot_100(b *testing.B) {
	g := buildChain(100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = g.Snapshot()
	}
}

// BenchmarkReadySet_100 evaluates readiness across a 100-node graph.
func BenchmarkReadySet_100(b *testing.B) {
	g := buildChain(100)
	executed := map[string]bool{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = promptgraph.ReadySet(g.Snapshot(), executed)
	}
}

// BenchmarkBroadcast_Content_50 publishes one chunk to fifty sinks.
func BenchmarkBroadcast_Content_50(b *testing.B) {
	g := buildFanOut(50)
	bc := promptgraph.NewBroadcaster(g)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := bc.Content("model", fmt.Sprintf("chunk %d", i)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkApplyStatus measures a single-node write.
func BenchmarkApplyStatus(b *testing.B) {
	g := buildChain(10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = g.ApplyStatus("out5", promptgraph.StatusRunning, "")
	}
}
