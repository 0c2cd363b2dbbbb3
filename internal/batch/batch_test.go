package batch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lintmux/internal/registry"
)

func tool(t *testing.T) *registry.LinterSpec {
	t.Helper()
	r, err := registry.New([]registry.LinterSpec{{
		Code:    "T",
		Include: []string{"**"},
		Command: []string{"t", "@" + registry.Placeholder},
	}}, registry.Settings{})
	require.NoError(t, err)
	s, _ := r.Get("T")
	return s
}

func TestPartitionIsLosslessAndExact(t *testing.T) {
	s := tool(t)
	var files []string
	for i := 0; i < 500; i++ {
		files = append(files, fmt.Sprintf("dir%d/file_%03d.py", i%7, i))
	}
	maxLen := FixedLength(s) + 400
	batches := Partition(s, files, maxLen)
	require.Greater(t, len(batches), 1)

	var union []string
	seen := map[string]int{}
	for i, b := range batches {
		assert.Equal(t, i, b.Index)
		assert.False(t, b.Oversized(maxLen), "batch %d over limit", i)
		for _, f := range b.Files {
			seen[f]++
		}
		union = append(union, b.Files...)
	}
	assert.Equal(t, files, union, "batches keep order and cover the scope")
	for f, n := range seen {
		assert.Equal(t, 1, n, "file %s appears in %d batches", f, n)
	}
}

func TestPartitionPathologicalPath(t *testing.T) {
	s := tool(t)
	maxLen := FixedLength(s) + 20
	long := strings.Repeat("x", 100)
	batches := Partition(s, []string{"a", long, "b"}, maxLen)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{long}, batches[1].Files)
	assert.True(t, batches[1].Oversized(maxLen))
	assert.Equal(t, []string{"b"}, batches[2].Files)
}

func TestPartitionEmpty(t *testing.T) {
	assert.Nil(t, Partition(tool(t), nil, 1000))
}

func TestPartitionSingleBatch(t *testing.T) {
	s := tool(t)
	batches := Partition(s, []string{"a.py", "b.py"}, 1<<20)
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"a.py", "b.py"}, batches[0].Files)
	assert.Same(t, s, batches[0].Tool)
}
