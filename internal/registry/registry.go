package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"lintmux/internal/config"
	"lintmux/internal/pattern"
)

// Placeholder is replaced by the path of the per-invocation file list.
const Placeholder = "{{PATHSFILE}}"

type Role string

const (
	RoleChecker   Role = "checker"
	RoleFormatter Role = "formatter"
	RoleMeta      Role = "meta"
)

func ParseRole(s string, formatter bool) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		if formatter {
			return RoleFormatter, nil
		}
		return RoleChecker, nil
	case "checker":
		if formatter {
			return "", fmt.Errorf("role checker conflicts with formatter: true")
		}
		return RoleChecker, nil
	case "formatter":
		return RoleFormatter, nil
	case "meta":
		if formatter {
			return "", fmt.Errorf("role meta conflicts with formatter: true")
		}
		return RoleMeta, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// SelfVersion marks the reserved version-gate declaration.
type SelfVersion struct {
	File    string
	URL     string
	Timeout time.Duration
}

type LinterSpec struct {
	Code              string
	Role              Role
	Include           []string
	Exclude           []string
	Command           []string
	Concurrency       int
	Timeout           time.Duration
	FindingsExitCodes []int
	SelfVersion       *SelfVersion

	matcher *pattern.Matcher
}

func (s *LinterSpec) Matches(rel string) bool { return s.matcher.Match(rel) }

func (s *LinterSpec) IsVersionGate() bool { return s.SelfVersion != nil }

// IsFindingsExit reports whether a nonzero exit code means "findings present".
func (s *LinterSpec) IsFindingsExit(code int) bool {
	for _, c := range s.FindingsExitCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Settings are the run-wide defaults resolved from the registry file.
type Settings struct {
	Jobs              int
	MaxArgLength      int
	Timeout           time.Duration
	FindingsExitCodes []int
}

const (
	DefaultMaxArgLength = 128 * 1024
	DefaultTimeout      = 10 * time.Minute
)

func DefaultSettings() Settings {
	return Settings{
		MaxArgLength:      DefaultMaxArgLength,
		Timeout:           DefaultTimeout,
		FindingsExitCodes: []int{1},
	}
}

// Registry is immutable after New returns.
type Registry struct {
	specs    []*LinterSpec
	byCode   map[string]*LinterSpec
	settings Settings
}

func New(specs []LinterSpec, settings Settings) (*Registry, error) {
	if settings.MaxArgLength <= 0 {
		settings.MaxArgLength = DefaultMaxArgLength
	}
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}
	if settings.Jobs < 0 {
		return nil, &ConfigError{Field: "settings.jobs", Err: fmt.Errorf("must not be negative")}
	}
	if len(settings.FindingsExitCodes) == 0 {
		settings.FindingsExitCodes = []int{1}
	}
	if err := validateExitCodes(settings.FindingsExitCodes); err != nil {
		return nil, &ConfigError{Field: "settings.findings_exit_codes", Err: err}
	}

	r := &Registry{byCode: make(map[string]*LinterSpec, len(specs)), settings: settings}
	gates := 0
	for i := range specs {
		s := specs[i]
		s.Code = strings.TrimSpace(s.Code)
		if s.Code == "" {
			return nil, &ConfigError{Field: fmt.Sprintf("linters[%d].code", i), Err: fmt.Errorf("code is required")}
		}
		if _, dup := r.byCode[s.Code]; dup {
			return nil, &ConfigError{Code: s.Code, Field: "code", Err: fmt.Errorf("duplicate linter code")}
		}
		if err := validateSpec(&s, settings); err != nil {
			return nil, err
		}
		if s.IsVersionGate() {
			gates++
			if gates > 1 {
				return nil, &ConfigError{Code: s.Code, Field: "self_version", Err: fmt.Errorf("only one self_version declaration is allowed")}
			}
		}
		sp := &s
		r.specs = append(r.specs, sp)
		r.byCode[s.Code] = sp
	}
	// meta entries run first; otherwise keep declaration order
	sort.SliceStable(r.specs, func(i, j int) bool {
		return r.specs[i].Role == RoleMeta && r.specs[j].Role != RoleMeta
	})
	return r, nil
}

func validateSpec(s *LinterSpec, settings Settings) error {
	if s.Role == "" {
		s.Role = RoleChecker
	}
	switch s.Role {
	case RoleChecker, RoleFormatter, RoleMeta:
	default:
		return &ConfigError{Code: s.Code, Field: "role", Err: fmt.Errorf("unknown role %q", s.Role)}
	}
	if s.Concurrency < 0 {
		return &ConfigError{Code: s.Code, Field: "concurrency", Err: fmt.Errorf("must not be negative")}
	}
	if s.Timeout < 0 {
		return &ConfigError{Code: s.Code, Field: "timeout", Err: fmt.Errorf("must not be negative")}
	}
	if s.Timeout == 0 {
		s.Timeout = settings.Timeout
	}
	if len(s.FindingsExitCodes) == 0 {
		s.FindingsExitCodes = append([]int(nil), settings.FindingsExitCodes...)
	}
	if err := validateExitCodes(s.FindingsExitCodes); err != nil {
		return &ConfigError{Code: s.Code, Field: "findings_exit_codes", Err: err}
	}

	if s.SelfVersion != nil {
		if s.Role != RoleMeta {
			return &ConfigError{Code: s.Code, Field: "self_version", Err: fmt.Errorf("self_version requires role meta")}
		}
		if len(s.Command) > 0 {
			return &ConfigError{Code: s.Code, Field: "command", Err: fmt.Errorf("self_version declarations take no command")}
		}
		if (s.SelfVersion.File == "") == (s.SelfVersion.URL == "") {
			return &ConfigError{Code: s.Code, Field: "self_version", Err: fmt.Errorf("exactly one of file or url is required")}
		}
		s.matcher = new(pattern.Matcher)
		return nil
	}

	m, err := pattern.Compile(s.Include, s.Exclude)
	if err != nil {
		return &ConfigError{Code: s.Code, Field: "include/exclude", Err: err}
	}
	s.matcher = m
	s.Include = append([]string(nil), s.Include...)
	s.Exclude = append([]string(nil), s.Exclude...)

	if len(s.Command) == 0 || strings.TrimSpace(s.Command[0]) == "" {
		return &ConfigError{Code: s.Code, Field: "command", Err: fmt.Errorf("command is required")}
	}
	if strings.Contains(s.Command[0], Placeholder) {
		return &ConfigError{Code: s.Code, Field: "command", Err: fmt.Errorf("placeholder %s cannot be the executable", Placeholder)}
	}
	n := 0
	for _, a := range s.Command {
		n += strings.Count(a, Placeholder)
	}
	if n != 1 {
		return &ConfigError{Code: s.Code, Field: "command", Err: fmt.Errorf("command must reference %s exactly once, found %d", Placeholder, n)}
	}
	s.Command = append([]string(nil), s.Command...)
	return nil
}

func validateExitCodes(codes []int) error {
	for _, c := range codes {
		if c <= 0 || c > 255 {
			return fmt.Errorf("findings exit code %d out of range 1..255", c)
		}
	}
	return nil
}

// FromConfig builds a Registry from a decoded registry file.
func FromConfig(cfg config.Config) (*Registry, error) {
	settings := DefaultSettings()
	settings.Jobs = cfg.Settings.Jobs
	if strings.TrimSpace(cfg.Settings.MaxArgLength) != "" {
		n, err := config.ParseSizeToBytes(cfg.Settings.MaxArgLength)
		if err != nil {
			return nil, &ConfigError{Field: "settings.max_arg_length", Err: err}
		}
		settings.MaxArgLength = int(n)
	}
	if strings.TrimSpace(cfg.Settings.Timeout) != "" {
		d, err := config.ParseDuration(cfg.Settings.Timeout)
		if err != nil {
			return nil, &ConfigError{Field: "settings.timeout", Err: err}
		}
		settings.Timeout = d
	}
	if len(cfg.Settings.FindingsExitCodes) > 0 {
		settings.FindingsExitCodes = append([]int(nil), cfg.Settings.FindingsExitCodes...)
	}

	specs := make([]LinterSpec, 0, len(cfg.Linters))
	for i, l := range cfg.Linters {
		role, err := ParseRole(l.Role, l.Formatter)
		if err != nil {
			return nil, &ConfigError{Code: l.Code, Field: fmt.Sprintf("linters[%d].role", i), Err: err}
		}
		timeout, err := config.ParseDuration(l.Timeout)
		if err != nil {
			return nil, &ConfigError{Code: l.Code, Field: fmt.Sprintf("linters[%d].timeout", i), Err: err}
		}
		spec := LinterSpec{
			Code:              l.Code,
			Role:              role,
			Include:           l.Include,
			Exclude:           l.Exclude,
			Command:           l.Command,
			Concurrency:       l.Concurrency,
			Timeout:           timeout,
			FindingsExitCodes: l.FindingsExitCodes,
		}
		if l.SelfVersion != nil {
			vt, err := config.ParseDuration(l.SelfVersion.Timeout)
			if err != nil {
				return nil, &ConfigError{Code: l.Code, Field: "self_version.timeout", Err: err}
			}
			spec.SelfVersion = &SelfVersion{File: l.SelfVersion.File, URL: l.SelfVersion.URL, Timeout: vt}
		}
		specs = append(specs, spec)
	}
	return New(specs, settings)
}

func (r *Registry) Settings() Settings { return r.settings }

func (r *Registry) Get(code string) (*LinterSpec, bool) {
	s, ok := r.byCode[code]
	return s, ok
}

// All returns meta entries first, then declaration order.
func (r *Registry) All() []*LinterSpec {
	return append([]*LinterSpec(nil), r.specs...)
}

func (r *Registry) Len() int { return len(r.specs) }

// VersionGate returns the self_version declaration, if any.
func (r *Registry) VersionGate() *LinterSpec {
	for _, s := range r.specs {
		if s.IsVersionGate() {
			return s
		}
	}
	return nil
}

// Tools returns every spec that is invoked as an external process, i.e. all
// but the version gate.
func (r *Registry) Tools() []*LinterSpec {
	out := make([]*LinterSpec, 0, len(r.specs))
	for _, s := range r.specs {
		if !s.IsVersionGate() {
			out = append(out, s)
		}
	}
	return out
}

// Filter narrows the registry to take (all when empty) minus skip. The version
// gate is always kept. Unknown codes are a ConfigError.
func (r *Registry) Filter(take, skip []string) (*Registry, error) {
	for _, c := range append(append([]string(nil), take...), skip...) {
		if _, ok := r.byCode[c]; !ok {
			return nil, &ConfigError{Code: c, Field: "take/skip", Err: fmt.Errorf("unknown linter code")}
		}
	}
	takeSet := toSet(take)
	skipSet := toSet(skip)
	out := &Registry{byCode: map[string]*LinterSpec{}, settings: r.settings}
	for _, s := range r.specs {
		if !s.IsVersionGate() {
			if len(takeSet) > 0 {
				if _, ok := takeSet[s.Code]; !ok {
					continue
				}
			}
			if _, ok := skipSet[s.Code]; ok {
				continue
			}
		}
		out.specs = append(out.specs, s)
		out.byCode[s.Code] = s
	}
	return out, nil
}

// WithRoles keeps the version gate plus the specs whose role is listed.
func (r *Registry) WithRoles(roles ...Role) *Registry {
	want := map[Role]struct{}{}
	for _, ro := range roles {
		want[ro] = struct{}{}
	}
	out := &Registry{byCode: map[string]*LinterSpec{}, settings: r.settings}
	for _, s := range r.specs {
		if _, ok := want[s.Role]; !ok && !s.IsVersionGate() {
			continue
		}
		out.specs = append(out.specs, s)
		out.byCode[s.Code] = s
	}
	return out
}

func toSet(vs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		m[v] = struct{}{}
	}
	return m
}
