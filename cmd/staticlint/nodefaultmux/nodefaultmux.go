package nodefaultmux

import (
	"go/ast"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer reports routes registered on http.DefaultServeMux through
// http.Handle or http.HandleFunc. Every route of the service belongs to the
// chi router; handlers on the default mux are silently unreachable and
// bypass the logging and auth middleware.
var Analyzer = &analysis.Analyzer{
	Name:     "nodefaultmux",
	Doc:      "prohibits registering handlers on http.DefaultServeMux",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

var forbidden = map[string]bool{
	"Handle":     true,
	"HandleFunc": true,
}

func run(pass *analysis.Pass) (interface{}, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.CallExpr)(nil),
	}

	insp.Preorder(nodeFilter, func(n ast.Node) {
		// Exclude go-build cache files
		if isGoBuildCacheFile(pass.Fset.File(n.Pos()).Name()) {
			return
		}

		call := n.(*ast.CallExpr)
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || !forbidden[sel.Sel.Name] {
			return
		}

		fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
		if !ok || fn.Pkg() == nil || fn.Pkg().Path() != "net/http" {
			return
		}

		// Methods such as (*http.ServeMux).Handle are fine.
		if sig, ok := fn.Type().(*types.Signature); ok && sig.Recv() != nil {
			return
		}

		pass.Reportf(call.Pos(), "avoid registering handlers on http.DefaultServeMux, use the chi router")
	})

	return nil, nil
}

func isGoBuildCacheFile(path string) bool {
	path = filepath.ToSlash(path)
	return strings.Contains(path, "/go-build/") || strings.Contains(path, `\go-build\`)
}
