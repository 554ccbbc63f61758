package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrorCodeInfo represents a declared ErrorCode variable
type ErrorCodeInfo struct {
	Name    string
	Code    string
	File    string
	Line    int
	Package string
	UsedIn  []string
}

// Used reports whether the code is referenced outside its declaration
func (i *ErrorCodeInfo) Used() bool {
	return len(i.UsedIn) > 0
}

// Violation is a forbidden pattern found in source
type Violation struct {
	File    string
	Line    int
	Pattern string
	Text    string
}

type parsedFile struct {
	path string
	dir  string
	test bool
	ast  *ast.File
}

// ErrorCodeChecker checks that declared error codes are unique and used
type ErrorCodeChecker struct {
	fileSet    *token.FileSet
	errorCodes map[string]*ErrorCodeInfo // keyed by dir + "." + name
	files      []parsedFile
	verbose    bool
}

// NewErrorCodeChecker creates a new ErrorCodeChecker
func NewErrorCodeChecker(verbose bool) *ErrorCodeChecker {
	return &ErrorCodeChecker{
		fileSet:    token.NewFileSet(),
		errorCodes: make(map[string]*ErrorCodeInfo),
		verbose:    verbose,
	}
}

func (c *ErrorCodeChecker) debug(format string, args ...interface{}) {
	if c.verbose {
		fmt.Printf(format, args...)
	}
}

func excluded(path string, excludePaths []string) bool {
	slashed := filepath.ToSlash(path)
	for _, p := range excludePaths {
		if strings.Contains(slashed+"/", p) {
			return true
		}
	}
	return false
}

// CheckDirectory parses every Go file under dir, collecting declarations
// first and references second
func (c *ErrorCodeChecker) CheckDirectory(dir string, excludePaths []string) error {
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path != dir && excluded(path, excludePaths) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}

		file, err := parser.ParseFile(c.fileSet, path, nil, 0)
		if err != nil {
			return fmt.Errorf("failed to parse file %s: %w", path, err)
		}
		c.files = append(c.files, parsedFile{
			path: path,
			dir:  filepath.Dir(path),
			test: strings.HasSuffix(path, "_test.go"),
			ast:  file,
		})
		return nil
	})
	if err != nil {
		return err
	}

	for _, f := range c.files {
		c.checkDeclarations(f)
	}
	for _, f := range c.files {
		if !f.test {
			c.checkUsage(f)
		}
	}
	return nil
}

// checkDeclarations records `Name = errors.MustNewCode("pkg.name")` specs
func (c *ErrorCodeChecker) checkDeclarations(f parsedFile) {
	ast.Inspect(f.ast, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range spec.Values {
			code, ok := mustNewCodeArg(value)
			if !ok || i >= len(spec.Names) {
				continue
			}
			name := spec.Names[i]
			pos := c.fileSet.Position(name.Pos())
			c.errorCodes[f.dir+"."+name.Name] = &ErrorCodeInfo{
				Name:    name.Name,
				Code:    code,
				File:    f.path,
				Line:    pos.Line,
				Package: f.ast.Name.Name,
			}
			c.debug("declared %s (%s) at %s:%d\n", name.Name, code, f.path, pos.Line)
		}
		return true
	})
}

func mustNewCodeArg(expr ast.Expr) (string, bool) {
	call, ok := expr.(*ast.CallExpr)
	if !ok || len(call.Args) != 1 {
		return "", false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "MustNewCode" {
		return "", false
	}
	lit, ok := call.Args[0].(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	code, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}
	return code, true
}

// checkUsage marks codes referenced by bare identifiers in the declaring
// directory or by qualified selectors anywhere
func (c *ErrorCodeChecker) checkUsage(f parsedFile) {
	declaring := make(map[*ast.Ident]bool)
	ast.Inspect(f.ast, func(n ast.Node) bool {
		if spec, ok := n.(*ast.ValueSpec); ok {
			for _, name := range spec.Names {
				declaring[name] = true
			}
		}
		return true
	})

	mark := func(info *ErrorCodeInfo, pos token.Pos) {
		p := c.fileSet.Position(pos)
		info.UsedIn = append(info.UsedIn, fmt.Sprintf("%s:%d", f.path, p.Line))
	}

	ast.Inspect(f.ast, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.SelectorExpr:
			if _, ok := x.X.(*ast.Ident); !ok {
				return true
			}
			for _, info := range c.errorCodes {
				if info.Name == x.Sel.Name && filepath.Dir(info.File) != f.dir {
					mark(info, x.Pos())
				}
			}
			return false
		case *ast.Ident:
			if declaring[x] {
				return true
			}
			if info, ok := c.errorCodes[f.dir+"."+x.Name]; ok {
				mark(info, x.Pos())
			}
		}
		return true
	})
}

func (c *ErrorCodeChecker) sortedCodes() []*ErrorCodeInfo {
	infos := make([]*ErrorCodeInfo, 0, len(c.errorCodes))
	for _, info := range c.errorCodes {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].File != infos[j].File {
			return infos[i].File < infos[j].File
		}
		return infos[i].Line < infos[j].Line
	})
	return infos
}

// Unused returns the declared codes nothing references
func (c *ErrorCodeChecker) Unused() []*ErrorCodeInfo {
	var unused []*ErrorCodeInfo
	for _, info := range c.sortedCodes() {
		if !info.Used() {
			unused = append(unused, info)
		}
	}
	return unused
}

// Duplicates returns code strings declared by more than one variable
func (c *ErrorCodeChecker) Duplicates() map[string][]*ErrorCodeInfo {
	byCode := make(map[string][]*ErrorCodeInfo)
	for _, info := range c.sortedCodes() {
		byCode[info.Code] = append(byCode[info.Code], info)
	}
	for code, infos := range byCode {
		if len(infos) < 2 {
			delete(byCode, code)
		}
	}
	return byCode
}

// CheckForbiddenPatterns finds patterns in non-test sources
func (c *ErrorCodeChecker) CheckForbiddenPatterns(patterns []string) ([]Violation, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	var violations []Violation
	for _, f := range c.files {
		if f.test {
			continue
		}
		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, err
		}
		for i, line := range strings.Split(string(data), "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "//") {
				continue
			}
			for j, re := range compiled {
				if re.MatchString(line) {
					violations = append(violations, Violation{
						File:    f.path,
						Line:    i + 1,
						Pattern: patterns[j],
						Text:    trimmed,
					})
				}
			}
		}
	}
	return violations, nil
}
