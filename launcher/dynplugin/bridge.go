package dynplugin

import (
	"context"
	"fmt"
	"go/ast"
	"strings"
)

// listenerExpr builds the expression handed to SetGameListener inside the
// bind closure. It forwards the completion result to the host fn.
func (p *Package) listenerExpr(ctx context.Context, s *Scope, u CodeUnit, alias string) (string, error) {
	ref := p.methods[u.Name][opListener]
	param := ref.decl.Type.Params.List[0].Type

	switch t := param.(type) {
	case *ast.FuncType:
		src, imports, err := p.funcBridge(t, ref.file, alias)
		if err != nil {
			return "", err
		}
		if err := s.importNamed(ctx, imports); err != nil {
			return "", err
		}
		return src, nil
	case *ast.InterfaceType:
		key := u.ImportPath + "." + u.Name + "." + opListener
		name, err := s.declareBridge(ctx, key, func(typeName string) (string, []importSpec, error) {
			return p.interfaceBridge(t, ref.file, alias, typeName)
		})
		if err != nil {
			return "", err
		}
		return "&" + name + "{fn: fn}", nil
	case *ast.Ident:
		tr, ok := p.types[t.Name]
		if !ok {
			return "", fmt.Errorf("listener type %s is not declared by the bundle", t.Name)
		}
		if tr.spec.TypeParams != nil && len(tr.spec.TypeParams.List) > 0 {
			return "", fmt.Errorf("listener type %s is generic", t.Name)
		}
		switch tt := tr.spec.Type.(type) {
		case *ast.FuncType:
			src, imports, err := p.funcBridge(tt, tr.file, alias)
			if err != nil {
				return "", err
			}
			if err := s.importNamed(ctx, imports); err != nil {
				return "", err
			}
			return src, nil
		case *ast.InterfaceType:
			name, err := s.declareBridge(ctx, u.ImportPath+"."+t.Name, func(typeName string) (string, []importSpec, error) {
				return p.interfaceBridge(tt, tr.file, alias, typeName)
			})
			if err != nil {
				return "", err
			}
			return "&" + name + "{fn: fn}", nil
		}
		return "", fmt.Errorf("listener type %s is neither an interface nor a func", t.Name)
	default:
		return "", fmt.Errorf("unsupported listener parameter %s", ref.file.text(param))
	}
}

func (p *Package) funcBridge(ft *ast.FuncType, file *sourceFile, alias string) (string, []importSpec, error) {
	sig, err := p.signature(ft, file, alias)
	if err != nil {
		return "", nil, err
	}
	if len(sig.params) != 1 {
		return "", nil, fmt.Errorf("listener func takes %d parameters", len(sig.params))
	}
	return fmt.Sprintf("func(%s)%s {\n\t\tfn(p0)\n\t\treturn\n\t}", sig.paramList(), sig.resultList()), sig.imports, nil
}

// Completion notification names recognised on a listener interface.
var completionMethods = []string{"GameFinished", "OnGameFinished"}

func (p *Package) interfaceBridge(it *ast.InterfaceType, file *sourceFile, alias, typeName string) (string, []importSpec, error) {
	type method struct {
		name string
		sig  signature
	}
	var methods []method
	for _, field := range it.Methods.List {
		if len(field.Names) == 0 {
			return "", nil, fmt.Errorf("embedded interfaces are not supported in listener types")
		}
		ft, ok := field.Type.(*ast.FuncType)
		if !ok {
			return "", nil, fmt.Errorf("unsupported listener method %s", field.Names[0].Name)
		}
		sig, err := p.signature(ft, file, alias)
		if err != nil {
			return "", nil, err
		}
		for _, name := range field.Names {
			methods = append(methods, method{name: name.Name, sig: sig})
		}
	}

	forward := -1
	for i, m := range methods {
		for _, want := range completionMethods {
			if strings.EqualFold(m.name, want) && len(m.sig.params) == 1 {
				forward = i
			}
		}
	}
	if forward < 0 && len(methods) == 1 && len(methods[0].sig.params) == 1 {
		forward = 0
	}
	if forward < 0 {
		return "", nil, fmt.Errorf("listener interface has no completion method")
	}

	var (
		b       strings.Builder
		imports []importSpec
	)
	fmt.Fprintf(&b, "type %s struct {\n\tfn func(interface{})\n}\n", typeName)
	for i, m := range methods {
		imports = append(imports, m.sig.imports...)
		fmt.Fprintf(&b, "\nfunc (b *%s) %s(%s)%s {\n", typeName, m.name, m.sig.paramList(), m.sig.resultList())
		if i == forward {
			b.WriteString("\tb.fn(p0)\n")
		}
		b.WriteString("\treturn\n}\n")
	}
	return b.String(), imports, nil
}
