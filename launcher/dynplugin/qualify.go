package dynplugin

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ast/astutil"
)

type importSpec struct {
	name string
	path string
}

// qualify rewrites a type expression taken from a bundle file so it can
// be written from outside the package: local types gain the package alias
// and package selectors are reported as imports to declare.
func (p *Package) qualify(expr ast.Expr, file *sourceFile, alias string) (string, []importSpec, error) {
	parsed, err := parser.ParseExpr(file.text(expr))
	if err != nil {
		return "", nil, err
	}

	var (
		imports []importSpec
		qerr    error
	)
	rewritten := astutil.Apply(parsed, func(c *astutil.Cursor) bool {
		if qerr != nil {
			return false
		}
		switch n := c.Node().(type) {
		case *ast.SelectorExpr:
			x, ok := n.X.(*ast.Ident)
			if !ok {
				qerr = fmt.Errorf("unsupported selector %s", file.text(expr))
				return false
			}
			importPath, ok := file.importPath(x.Name)
			if !ok {
				qerr = fmt.Errorf("unknown package %s", x.Name)
				return false
			}
			imports = append(imports, importSpec{name: x.Name, path: importPath})
			return false
		case *ast.Ident:
			switch c.Name() {
			case "Names", "Sel", "Key":
				return false
			}
			if _, local := p.types[n.Name]; local {
				if !ast.IsExported(n.Name) {
					qerr = fmt.Errorf("type %s is not exported", n.Name)
					return false
				}
				c.Replace(&ast.SelectorExpr{X: ast.NewIdent(alias), Sel: ast.NewIdent(n.Name)})
				return false
			}
			if types.Universe.Lookup(n.Name) == nil {
				qerr = fmt.Errorf("unknown identifier %s", n.Name)
			}
			return false
		}
		return true
	}, nil)
	if qerr != nil {
		return "", nil, qerr
	}

	var buf bytes.Buffer
	if err := printer.Fprint(&buf, token.NewFileSet(), rewritten); err != nil {
		return "", nil, err
	}
	return buf.String(), imports, nil
}

type signature struct {
	params  []string
	results []string
	imports []importSpec
}

func (p *Package) signature(ft *ast.FuncType, file *sourceFile, alias string) (signature, error) {
	var sig signature
	collect := func(list *ast.FieldList) ([]string, error) {
		if list == nil {
			return nil, nil
		}
		var out []string
		for _, field := range list.List {
			expr, variadic := field.Type, ""
			if ell, ok := expr.(*ast.Ellipsis); ok {
				expr, variadic = ell.Elt, "..."
			}
			typ, imports, err := p.qualify(expr, file, alias)
			if err != nil {
				return nil, err
			}
			typ = variadic + typ
			sig.imports = append(sig.imports, imports...)
			n := len(field.Names)
			if n == 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				out = append(out, typ)
			}
		}
		return out, nil
	}
	var err error
	if sig.params, err = collect(ft.Params); err != nil {
		return signature{}, err
	}
	if sig.results, err = collect(ft.Results); err != nil {
		return signature{}, err
	}
	return sig, nil
}

func (s signature) paramList() string {
	var buf bytes.Buffer
	for i, typ := range s.params {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "p%d %s", i, typ)
	}
	return buf.String()
}

func (s signature) resultList() string {
	if len(s.results) == 0 {
		return ""
	}
	var buf bytes.Buffer
	buf.WriteString(" (")
	for i, typ := range s.results {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "r%d %s", i, typ)
	}
	buf.WriteString(")")
	return buf.String()
}
