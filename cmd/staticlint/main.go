// Command staticlint is the multichecker run on sitegate in CI.
//
// It always runs nodefaultmux (routes must go through the chi router),
// ineffassign and nilerr. The x/tools passes and the staticcheck, simple and
// stylecheck analyzers are picked by config.json next to the binary, or by the
// file named in STATICLINT_CONFIG:
//
//	{
//		"Passes": ["httpresponse", "lostcancel", "errorsas"],
//		"Staticcheck": ["SA*", "S1000", "ST1005"]
//	}
//
// A trailing "*" selects every check with that prefix. Without a config file
// the defaults in defaultLintConfig are used.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/gordonklaus/ineffassign/pkg/ineffassign"
	"github.com/gostaticanalysis/nilerr"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"

	"github.com/patric-chuzhbe/sitegate/cmd/staticlint/nodefaultmux"
)

const configFileName = `config.json`

func configPath() string {
	if path := os.Getenv("STATICLINT_CONFIG"); path != "" {
		return path
	}

	appfile, err := os.Executable()
	if err != nil {
		return configFileName
	}

	return filepath.Join(filepath.Dir(appfile), configFileName)
}

func main() {
	cfg, err := loadLintConfig(configPath())
	if err != nil {
		log.Fatal(err)
	}

	checks := []*analysis.Analyzer{
		nodefaultmux.Analyzer,
		ineffassign.Analyzer,
		nilerr.Analyzer,
	}
	checks = append(checks, cfg.analyzers()...)

	multichecker.Main(checks...)
}
