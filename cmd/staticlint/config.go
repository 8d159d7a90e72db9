package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilness"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shadow"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/timeformat"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unusedresult"
	"honnef.co/go/tools/analysis/lint"
	"honnef.co/go/tools/simple"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"
)

// passes lists the x/tools analyzers that can be enabled by name.
// httpresponse and lostcancel catch leaked response bodies and request
// contexts in handlers and clients; structtag and unmarshal check the
// json/bson/env tags of config and models.
var passes = map[string]*analysis.Analyzer{
	copylock.Analyzer.Name:     copylock.Analyzer,
	errorsas.Analyzer.Name:     errorsas.Analyzer,
	httpresponse.Analyzer.Name: httpresponse.Analyzer,
	loopclosure.Analyzer.Name:  loopclosure.Analyzer,
	lostcancel.Analyzer.Name:   lostcancel.Analyzer,
	nilness.Analyzer.Name:      nilness.Analyzer,
	printf.Analyzer.Name:       printf.Analyzer,
	shadow.Analyzer.Name:       shadow.Analyzer,
	structtag.Analyzer.Name:    structtag.Analyzer,
	timeformat.Analyzer.Name:   timeformat.Analyzer,
	unmarshal.Analyzer.Name:    unmarshal.Analyzer,
	unusedresult.Analyzer.Name: unusedresult.Analyzer,
}

// lintConfig is the content of config.json.
type lintConfig struct {
	// Passes holds x/tools analyzer names, e.g. "httpresponse".
	Passes []string

	// Staticcheck holds staticcheck, simple and stylecheck check names,
	// e.g. "SA1019", or prefixes ending with "*", e.g. "SA*".
	Staticcheck []string
}

var defaultLintConfig = lintConfig{
	Passes: []string{
		"copylock",
		"errorsas",
		"httpresponse",
		"lostcancel",
		"printf",
		"structtag",
		"unmarshal",
	},
	Staticcheck: []string{"SA*", "S1000", "ST1005"},
}

func loadLintConfig(path string) (lintConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultLintConfig, nil
	}
	if err != nil {
		return lintConfig{}, fmt.Errorf("in cmd/staticlint/config.go/loadLintConfig(): error while `os.ReadFile()` calling: %w", err)
	}

	var cfg lintConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return lintConfig{}, fmt.Errorf("in cmd/staticlint/config.go/loadLintConfig(): error while `json.Unmarshal()` calling: %w", err)
	}

	for _, name := range cfg.Passes {
		if _, ok := passes[name]; !ok {
			return lintConfig{}, fmt.Errorf("unknown pass %q", name)
		}
	}

	return cfg, nil
}

func (c lintConfig) analyzers() []*analysis.Analyzer {
	result := make([]*analysis.Analyzer, 0, len(c.Passes))
	for _, name := range c.Passes {
		result = append(result, passes[name])
	}

	for _, group := range [][]*lint.Analyzer{staticcheck.Analyzers, simple.Analyzers, stylecheck.Analyzers} {
		for _, v := range group {
			if c.staticcheckEnabled(v.Analyzer.Name) {
				result = append(result, v.Analyzer)
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}

func (c lintConfig) staticcheckEnabled(name string) bool {
	for _, pattern := range c.Staticcheck {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
			continue
		}
		if pattern == name {
			return true
		}
	}

	return false
}
