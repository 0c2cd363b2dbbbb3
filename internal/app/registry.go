package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"lintmux/internal/config"
	"lintmux/internal/registry"
)

// Loaded is a resolved registry file.
type Loaded struct {
	Path      string
	Root      string
	Registry  *registry.Registry
	Overrides config.Overrides
}

// LoadRegistry finds and decodes the registry file, applies LINTMUX_*
// overrides and narrows it by take/skip. The directory holding the file is
// the repository root every path is relative to.
func LoadRegistry(opts Options) (Loaded, error) {
	cwd := opts.CWD
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Loaded{}, err
		}
		cwd = wd
	}
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		found, err := config.Find(cwd)
		if err != nil {
			return Loaded{}, &ConfigErr{Code: "config_not_found", Msg: err.Error(), Err: err}
		}
		path = found
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Loaded{}, &ConfigErr{Code: "config_not_found", Msg: "registry file not found: " + path, Err: err}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return Loaded{}, &ConfigErr{Code: "config_invalid", Msg: err.Error(), Err: err}
	}
	ov, _, err := config.LoadOverrides(config.EnvPrefix)
	if err != nil {
		return Loaded{}, &ConfigErr{Code: "env_invalid", Msg: err.Error(), Err: err}
	}
	ov.Apply(&cfg)

	reg, err := registry.FromConfig(cfg)
	if err != nil {
		return Loaded{}, configErr(err)
	}
	reg, err = reg.Filter(opts.Take, opts.Skip)
	if err != nil {
		return Loaded{}, configErr(err)
	}
	if opts.FormattersOnly {
		reg = reg.WithRoles(registry.RoleFormatter)
	}
	return Loaded{Path: path, Root: filepath.Dir(path), Registry: reg, Overrides: ov}, nil
}

func configErr(err error) *ConfigErr {
	code := "config_invalid"
	var ce *registry.ConfigError
	if errors.As(err, &ce) && ce.Field == "take/skip" {
		code = "unknown_linter"
	}
	return &ConfigErr{Code: code, Msg: err.Error(), Err: err}
}
