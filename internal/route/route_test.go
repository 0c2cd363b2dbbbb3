package route

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lintmux/internal/registry"
)

func mustRegistry(t *testing.T, specs ...registry.LinterSpec) *registry.Registry {
	t.Helper()
	r, err := registry.New(specs, registry.Settings{})
	require.NoError(t, err)
	return r
}

func spec(code string, role registry.Role, include, exclude []string) registry.LinterSpec {
	return registry.LinterSpec{
		Code:    code,
		Role:    role,
		Include: include,
		Exclude: exclude,
		Command: []string{code, registry.Placeholder},
	}
}

func TestRouteExample(t *testing.T) {
	r := mustRegistry(t,
		spec("A", registry.RoleChecker, []string{"**/*.txt"}, nil),
		spec("B", registry.RoleFormatter, []string{"**/*.md"}, []string{"draft/**"}),
	)
	scopes := Route([]string{"a.txt", "draft/x.md", "docs/y.md"}, r.All())
	require.Len(t, scopes, 2)

	if diff := cmp.Diff([]string{"a.txt"}, scopes[0].Files); diff != "" {
		t.Fatalf("A scope mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"docs/y.md"}, scopes[1].Files); diff != "" {
		t.Fatalf("B scope mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, Verify(scopes))
}

func TestRouteMembershipProperty(t *testing.T) {
	r := mustRegistry(t,
		spec("GO", registry.RoleChecker, []string{"**/*.go"}, []string{"vendor/**", "**/*_gen.go"}),
		spec("ALL", registry.RoleChecker, []string{"**"}, []string{"**/*.png"}),
		spec("NONE", registry.RoleChecker, nil, nil),
	)
	files := []string{"main.go", "vendor/x/y.go", "pkg/a_gen.go", "pkg/a.go", "img/logo.png", "README"}
	scopes := Route(files, r.All())

	for _, sc := range scopes {
		in := map[string]bool{}
		for _, f := range sc.Files {
			in[f] = true
		}
		for _, f := range files {
			assert.Equal(t, sc.Spec.Matches(f), in[f], "tool %s file %s", sc.Spec.Code, f)
		}
	}
	assert.True(t, scopes[2].Empty(), "a tool without include patterns is inert")
	assert.Equal(t, []string{"main.go", "pkg/a.go"}, scopes[0].Files)
}

func TestRouteNormalizesPaths(t *testing.T) {
	r := mustRegistry(t, spec("A", registry.RoleChecker, []string{"src/**/*.c"}, nil))
	scopes := Route([]string{"./src/x/y.c", "src\\z.c", ""}, r.All())
	assert.Equal(t, []string{"src/x/y.c", "src/z.c"}, scopes[0].Files)
}

func TestFormatterOverlaps(t *testing.T) {
	r := mustRegistry(t,
		spec("F1", registry.RoleFormatter, []string{"**/*.py"}, nil),
		spec("F2", registry.RoleFormatter, []string{"tools/**"}, nil),
		spec("C", registry.RoleChecker, []string{"**"}, nil),
	)
	scopes := Route([]string{"a.py", "tools/b.py", "tools/c.sh"}, r.All())
	ov := FormatterOverlaps(scopes)
	require.Len(t, ov, 1)
	assert.Equal(t, Overlap{Path: "tools/b.py", Tools: []string{"F1", "F2"}}, ov[0])

	err := OverlapError(ov)
	var ce *registry.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, err.Error(), "tools/b.py (F1, F2)")
}

func TestVerifyDetectsInvariantViolation(t *testing.T) {
	r := mustRegistry(t, spec("A", registry.RoleChecker, []string{"*.txt"}, nil))
	a, _ := r.Get("A")
	err := Verify([]MatchedScope{{Spec: a, Files: []string{"x.md"}}})
	var re *RoutingError
	require.True(t, errors.As(err, &re))

	err = Verify([]MatchedScope{{Spec: a, Files: []string{"x.txt", "x.txt"}}})
	require.Error(t, err)
}
