package dynplugin

import (
	"go/ast"
	"go/token"
	"sort"
	"strings"
)

// UnitKind classifies a code unit by how its type is declared.
type UnitKind int

const (
	KindStruct UnitKind = iota
	KindNamed
	KindInterface
	KindEnum
	KindGeneric
	KindAlias
)

func (k UnitKind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindNamed:
		return "named"
	case KindInterface:
		return "interface"
	case KindEnum:
		return "enum"
	case KindGeneric:
		return "generic"
	case KindAlias:
		return "alias"
	default:
		return "unknown"
	}
}

// Method is one exposed operation of a code unit.
type Method struct {
	Name    string
	Params  int
	Results int
}

// CodeUnit is a named type found in a bundle package, candidate for adaptation.
type CodeUnit struct {
	Name       string
	ImportPath string
	Kind       UnitKind
	Methods    []Method

	pkg *Package
}

// QualifiedName returns importpath.Name.
func (u CodeUnit) QualifiedName() string {
	return u.ImportPath + "." + u.Name
}

// Method looks up a method by exact name.
func (u CodeUnit) Method(name string) (Method, bool) {
	for _, m := range u.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

// Names containing these fragments are support scaffolding, never games.
var excludedFragments = []string{"listener", "stat", "function", "interface"}

func excludedName(name string) bool {
	lower := strings.ToLower(name)
	for _, fragment := range excludedFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

type sourceFile struct {
	name string
	src  []byte
	file *ast.File
	tok  *token.File
}

func (f *sourceFile) text(node ast.Node) string {
	start := f.tok.Offset(node.Pos())
	end := f.tok.Offset(node.End())
	return string(f.src[start:end])
}

// importPath resolves the local name of an import in this file.
func (f *sourceFile) importPath(local string) (string, bool) {
	for _, spec := range f.file.Imports {
		path := strings.Trim(spec.Path.Value, `"`)
		name := path
		if i := strings.LastIndex(path, "/"); i >= 0 {
			name = path[i+1:]
		}
		if spec.Name != nil {
			name = spec.Name.Name
		}
		if name == local {
			return path, true
		}
	}
	return "", false
}

type typeRef struct {
	spec *ast.TypeSpec
	file *sourceFile
}

type funcRef struct {
	decl *ast.FuncDecl
	file *sourceFile
}

// Package is one Go package inside a bundle.
type Package struct {
	Name       string
	ImportPath string
	Units      []CodeUnit

	types   map[string]typeRef
	funcs   map[string]funcRef
	methods map[string]map[string]funcRef
	enums   map[string]bool
}

func newPackage(name, importPath string, files []*sourceFile) *Package {
	p := &Package{
		Name:       name,
		ImportPath: importPath,
		types:      make(map[string]typeRef),
		funcs:      make(map[string]funcRef),
		methods:    make(map[string]map[string]funcRef),
		enums:      make(map[string]bool),
	}
	for _, f := range files {
		p.index(f)
	}

	var units []CodeUnit
	for _, f := range files {
		if ast.IsGenerated(f.file) {
			continue
		}
		for _, decl := range f.file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				ts := spec.(*ast.TypeSpec)
				name := ts.Name.Name
				if !ast.IsExported(name) || excludedName(name) {
					continue
				}
				units = append(units, p.unit(ts))
			}
		}
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Name < units[j].Name })
	p.Units = units
	return p
}

func (p *Package) index(f *sourceFile) {
	for _, decl := range f.file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					p.types[s.Name.Name] = typeRef{spec: s, file: f}
				case *ast.ValueSpec:
					if d.Tok != token.CONST {
						continue
					}
					if ident, ok := s.Type.(*ast.Ident); ok {
						p.enums[ident.Name] = true
					}
				}
			}
		case *ast.FuncDecl:
			if d.Recv == nil || len(d.Recv.List) == 0 {
				p.funcs[d.Name.Name] = funcRef{decl: d, file: f}
				continue
			}
			base := receiverBase(d.Recv.List[0].Type)
			if base == "" {
				continue
			}
			if p.methods[base] == nil {
				p.methods[base] = make(map[string]funcRef)
			}
			p.methods[base][d.Name.Name] = funcRef{decl: d, file: f}
		}
	}
}

func (p *Package) unit(ts *ast.TypeSpec) CodeUnit {
	name := ts.Name.Name
	u := CodeUnit{Name: name, ImportPath: p.ImportPath, pkg: p}

	switch {
	case ts.Assign.IsValid():
		u.Kind = KindAlias
	case ts.TypeParams != nil && len(ts.TypeParams.List) > 0:
		u.Kind = KindGeneric
	default:
		switch ts.Type.(type) {
		case *ast.InterfaceType:
			u.Kind = KindInterface
		case *ast.StructType:
			u.Kind = KindStruct
		default:
			u.Kind = KindNamed
			if p.enums[name] {
				u.Kind = KindEnum
			}
		}
	}

	for methodName, ref := range p.methods[name] {
		if !ast.IsExported(methodName) {
			continue
		}
		u.Methods = append(u.Methods, Method{
			Name:    methodName,
			Params:  fieldCount(ref.decl.Type.Params),
			Results: fieldCount(ref.decl.Type.Results),
		})
	}
	sort.Slice(u.Methods, func(i, j int) bool { return u.Methods[i].Name < u.Methods[j].Name })
	return u
}

func receiverBase(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverBase(t.X)
	case *ast.IndexExpr:
		return receiverBase(t.X)
	case *ast.IndexListExpr:
		return receiverBase(t.X)
	case *ast.ParenExpr:
		return receiverBase(t.X)
	default:
		return ""
	}
}

func fieldCount(list *ast.FieldList) int {
	if list == nil {
		return 0
	}
	n := 0
	for _, field := range list.List {
		if len(field.Names) == 0 {
			n++
			continue
		}
		n += len(field.Names)
	}
	return n
}
