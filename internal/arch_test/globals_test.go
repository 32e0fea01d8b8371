package arch_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"testing"
)

// allowedGlobals lists package-level vars that none of the rules in
// globalViolations accept. Each entry says why it is safe.
var allowedGlobals = map[string][]string{
	// target: ErrCycle re-exports the dag sentinel so callers need one import.
	"target": {"ErrCycle"},
}

// TestNoMutableGlobalState keeps state out of package scope: every piece of
// per-invocation state lives in a Driver, a params value, or a Collection.
// Package-level vars may only be
//   - error sentinels (errors.New / fmt.Errorf)
//   - go:embed assets
//   - regexp.MustCompile patterns
//   - composite-literal lookup tables (kind declarations, magic numbers)
//   - names in allowedGlobals
func TestNoMutableGlobalState(t *testing.T) {
	t.Parallel()

	dir := internalDirPath(t)
	for _, pkg := range internalPackages(t) {
		t.Run(pkg, func(t *testing.T) {
			t.Parallel()
			allowed := allowedGlobals[pkg]
			for _, path := range goFilesIn(t, filepath.Join(dir, pkg)) {
				for _, name := range globalViolations(parseFile(t, path), allowed) {
					t.Errorf("%s: package-level var %q holds mutable state; move it into a value that is passed explicitly or add it to allowedGlobals with a reason",
						relativeFilePath(path), name)
				}
			}
		})
	}
}

// globalViolations returns the package-level vars in f that no rule accepts.
func globalViolations(f *ast.File, allowed []string) []string {
	var bad []string
	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.VAR {
			continue
		}
		for _, spec := range gd.Specs {
			vs := spec.(*ast.ValueSpec)
			embedded := hasEmbedDirective(gd.Doc) || hasEmbedDirective(vs.Doc)
			for i, name := range vs.Names {
				if name.Name == "_" || embedded || slices.Contains(allowed, name.Name) {
					continue
				}
				var val ast.Expr
				if i < len(vs.Values) {
					val = vs.Values[i]
				}
				if !acceptableGlobal(val) {
					bad = append(bad, name.Name)
				}
			}
		}
	}
	return bad
}

func acceptableGlobal(val ast.Expr) bool {
	switch v := val.(type) {
	case *ast.CompositeLit:
		return true
	case *ast.CallExpr:
		switch selectorName(v.Fun) {
		case "errors.New", "fmt.Errorf", "regexp.MustCompile":
			return true
		}
	}
	return false
}

func selectorName(expr ast.Expr) string {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return ""
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok {
		return ""
	}
	return pkg.Name + "." + sel.Sel.Name
}

func hasEmbedDirective(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if strings.HasPrefix(c.Text, "//go:embed ") {
			return true
		}
	}
	return false
}

// TestAllowedGlobalsAreUsed keeps allowedGlobals free of stale entries.
func TestAllowedGlobalsAreUsed(t *testing.T) {
	t.Parallel()

	dir := internalDirPath(t)
	for pkg, names := range allowedGlobals {
		declared := make(map[string]bool)
		for _, path := range goFilesIn(t, filepath.Join(dir, pkg)) {
			for _, decl := range parseFile(t, path).Decls {
				gd, ok := decl.(*ast.GenDecl)
				if !ok || gd.Tok != token.VAR {
					continue
				}
				for _, spec := range gd.Specs {
					for _, n := range spec.(*ast.ValueSpec).Names {
						declared[n.Name] = true
					}
				}
			}
		}
		for _, name := range names {
			if !declared[name] {
				t.Errorf("allowedGlobals[%q] lists %q, which is not declared; remove it", pkg, name)
			}
		}
	}
}

func TestGlobalViolations(t *testing.T) {
	t.Parallel()
	src := `package p

import (
	"errors"
	"regexp"
)

//go:embed settings.gradle.in
var template string

var (
	ErrDeclined = errors.New("declined")
	versionRe   = regexp.MustCompile("v(\\d+)")
	order       = []string{"mprocs", "java"}
	_           = order
)

var nextPort = 4100
var cache = make(map[string]string)
var registry *int
var reexported = other.ErrCycle
`
	f, err := parser.ParseFile(token.NewFileSet(), "p.go", src, parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}

	got := globalViolations(f, nil)
	sort.Strings(got)
	want := []string{"cache", "nextPort", "registry", "reexported"}
	if !slices.Equal(got, want) {
		t.Errorf("violations = %v, want %v", got, want)
	}

	got = globalViolations(f, []string{"reexported", "cache", "nextPort", "registry"})
	if len(got) != 0 {
		t.Errorf("allowlisted names still reported: %v", got)
	}
}
