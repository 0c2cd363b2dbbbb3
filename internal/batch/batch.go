package batch

import (
	"lintmux/internal/registry"
)

// ArtifactReserve is the length budgeted for the substituted path-list file
// name, which is only known once the invocation creates it.
const ArtifactReserve = 256

// Batch is one size-bounded group of files for a single tool.
type Batch struct {
	Tool  *registry.LinterSpec
	Index int
	Files []string
}

// FixedLength is the serialised length of the command without any paths.
func FixedLength(spec *registry.LinterSpec) int {
	n := 0
	for _, a := range spec.Command {
		n += len(a) + 1
	}
	return n - len(registry.Placeholder) + ArtifactReserve
}

// Partition splits files into batches whose serialised invocation (fixed
// command plus one path per line) stays within maxLen. A path that alone
// exceeds the limit still gets a batch of its own. Order is preserved and each
// file lands in exactly one batch.
func Partition(spec *registry.LinterSpec, files []string, maxLen int) []Batch {
	if len(files) == 0 {
		return nil
	}
	fixed := FixedLength(spec)
	var out []Batch
	cur := make([]string, 0)
	size := fixed
	for _, f := range files {
		cost := len(f) + 1
		if len(cur) > 0 && size+cost > maxLen {
			out = append(out, Batch{Tool: spec, Index: len(out), Files: cur})
			cur = make([]string, 0)
			size = fixed
		}
		cur = append(cur, f)
		size += cost
	}
	out = append(out, Batch{Tool: spec, Index: len(out), Files: cur})
	return out
}

// Oversized reports whether the batch exceeds maxLen, which only happens for a
// lone pathological path.
func (b Batch) Oversized(maxLen int) bool {
	n := FixedLength(b.Tool)
	for _, f := range b.Files {
		n += len(f) + 1
	}
	return n > maxLen
}
