package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()
	assert.Equal(t, 0, r.Len())

	r.Register("one", 1)
	r.Register("two", 2)
	r.Register("one", 11)

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 11, v)

	v, ok = r.Get("three")
	assert.False(t, ok)
	assert.Zero(t, v)

	assert.True(t, r.Has("two"))
	r.Delete("two")
	assert.False(t, r.Has("two"))
	assert.Equal(t, 1, r.Len())
}

func TestKeysSorted(t *testing.T) {
	r := New[string, bool]()
	for _, k := range []string{"output", "llmInvocation", "start", "textPrompt"} {
		r.Register(k, true)
	}
	assert.Equal(t, []string{"llmInvocation", "output", "start", "textPrompt"}, r.Keys())
}

func TestCloneIsIndependent(t *testing.T) {
	r := New[string, string]()
	r.Register("llm", "default")

	c := r.Clone()
	c.Register("llm", "custom")
	c.Register("extra", "x")

	v, _ := r.Get("llm")
	assert.Equal(t, "default", v)
	assert.False(t, r.Has("extra"))

	v, _ = c.Get("llm")
	assert.Equal(t, "custom", v)
}

func TestConcurrentAccess(t *testing.T) {
	r := New[string, int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r.Register(fmt.Sprintf("k%d", i), i)
		}(i)
		go func() {
			defer wg.Done()
			_ = r.Keys()
			_ = r.Clone()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, r.Len())
}
