package dynplugin

import "go/ast"

// Construction strategies, in order of preference.
const (
	viaAccessor    = "accessor"
	viaConstructor = "constructor"
	viaZeroValue   = "zero value"
)

type construction struct {
	via     string
	expr    string
	withErr bool
}

// construction picks how a unit is instantiated: a shared-instance
// accessor first, then a New constructor, then the zero value.
func (p *Package) construction(u CodeUnit, alias string, sole bool) construction {
	accessors := []string{u.Name + "Instance"}
	if sole {
		accessors = append(accessors, "GetInstance")
	}
	for _, name := range accessors {
		if ref, ok := p.funcs[name]; ok && factoryShape(ref.decl) {
			return construction{via: viaAccessor, expr: alias + "." + name + "()", withErr: fieldCount(ref.decl.Type.Results) == 2}
		}
	}
	if ref, ok := p.funcs["New"+u.Name]; ok && factoryShape(ref.decl) {
		return construction{via: viaConstructor, expr: alias + ".New" + u.Name + "()", withErr: fieldCount(ref.decl.Type.Results) == 2}
	}
	return construction{via: viaZeroValue, expr: "new(" + alias + "." + u.Name + ")"}
}

func factoryShape(decl *ast.FuncDecl) bool {
	if decl.Type.TypeParams != nil && len(decl.Type.TypeParams.List) > 0 {
		return false
	}
	if fieldCount(decl.Type.Params) != 0 {
		return false
	}
	switch fieldCount(decl.Type.Results) {
	case 1:
		return true
	case 2:
		return lastIsError(decl.Type.Results)
	default:
		return false
	}
}

func lastIsError(list *ast.FieldList) bool {
	if list == nil || len(list.List) == 0 {
		return false
	}
	ident, ok := list.List[len(list.List)-1].Type.(*ast.Ident)
	return ok && ident.Name == "error"
}
