package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultFileName = ".lintmux.yaml"

type SelfVersion struct {
	File    string `yaml:"file"`
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

type Linter struct {
	Code              string       `yaml:"code"`
	Role              string       `yaml:"role"`
	Formatter         bool         `yaml:"formatter"`
	Include           []string     `yaml:"include"`
	Exclude           []string     `yaml:"exclude"`
	Command           []string     `yaml:"command"`
	Concurrency       int          `yaml:"concurrency"`
	Timeout           string       `yaml:"timeout"`
	FindingsExitCodes []int        `yaml:"findings_exit_codes"`
	SelfVersion       *SelfVersion `yaml:"self_version"`
}

type Settings struct {
	Jobs              int    `yaml:"jobs"`
	MaxArgLength      string `yaml:"max_arg_length"`
	Timeout           string `yaml:"timeout"`
	FindingsExitCodes []int  `yaml:"findings_exit_codes"`
}

type Config struct {
	Settings Settings `yaml:"settings"`
	Linters  []Linter `yaml:"linters"`
}

func Load(path string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) == "" {
		return cfg, fmt.Errorf("config path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	var cfg Config
	expanded, err := expandEnv(string(b))
	if err != nil {
		return cfg, err
	}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Find walks up from dir looking for DefaultFileName.
func Find(dir string) (string, error) {
	cur, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		p := filepath.Join(cur, DefaultFileName)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("no %s found in %s or any parent directory", DefaultFileName, dir)
		}
		cur = parent
	}
}

var envExpr = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

func expandEnv(src string) (string, error) {
	var out strings.Builder
	last := 0
	for _, idx := range envExpr.FindAllStringSubmatchIndex(src, -1) {
		out.WriteString(src[last:idx[0]])
		name := src[idx[2]:idx[3]]
		hasDefault := idx[4] >= 0 && idx[5] >= 0
		defVal := ""
		if hasDefault && idx[6] >= 0 && idx[7] >= 0 {
			defVal = src[idx[6]:idx[7]]
		}
		if v, ok := os.LookupEnv(name); ok {
			out.WriteString(v)
		} else if hasDefault {
			out.WriteString(defVal)
		} else {
			return "", fmt.Errorf("config references unset environment variable %s", name)
		}
		last = idx[1]
	}
	out.WriteString(src[last:])
	return out.String(), nil
}

func ParseSizeToBytes(s string) (int64, error) {
	v := strings.TrimSpace(strings.ToUpper(s))
	if v == "" {
		return 0, nil
	}
	units := []struct {
		U string
		M int64
	}{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}
	for _, unit := range units {
		if strings.HasSuffix(v, unit.U) {
			n := strings.TrimSpace(strings.TrimSuffix(v, unit.U))
			f, err := strconv.ParseFloat(n, 64)
			if err != nil || f < 0 {
				return 0, fmt.Errorf("invalid size: %s", s)
			}
			return int64(f * float64(unit.M)), nil
		}
	}
	// bare number is bytes
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size: %s", s)
	}
	return n, nil
}

// ParseDuration accepts Go durations and bare seconds. Empty means zero.
func ParseDuration(s string) (time.Duration, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid duration: %s", s)
	}
	return d, nil
}
