package dynplugin

import (
	"context"
	"fmt"
	"go/ast"
	"strings"
)

// Suffixes of the functions a shim declares under its generated name.
const (
	shimRenew = "Renew"
	shimStart = "Start"
	shimStats = "Stats"
	shimBind  = "Bind"
)

// callResults renders a call whose results are discarded except for a
// trailing error, returned as err.
func callResults(call string, list *ast.FieldList) string {
	n := fieldCount(list)
	if n == 0 || !lastIsError(list) {
		return fmt.Sprintf("\t%s\n\treturn nil\n", call)
	}
	if n == 1 {
		return fmt.Sprintf("\treturn %s\n", call)
	}
	blanks := strings.Repeat("_, ", n-1)
	return fmt.Sprintf("\t%serr := %s\n\treturn err\n", blanks, call)
}

func statsResult(call string, list *ast.FieldList) string {
	switch n := fieldCount(list); n {
	case 0:
		return fmt.Sprintf("\t%s\n\treturn nil\n", call)
	case 1:
		return fmt.Sprintf("\treturn %s\n", call)
	default:
		return fmt.Sprintf("\tr0%s := %s\n\treturn r0\n", strings.Repeat(", _", n-1), call)
	}
}

// shimSource declares, under name, a package variable holding the unit's
// instance and the functions the host calls on it:
// <name>Renew, <name>Start, <name>Stats and, with a listener, <name>Bind.
func (p *Package) shimSource(u CodeUnit, alias string, c construction, listener, name string) string {
	methods := p.methods[u.Name]
	inst := name + "Inst"
	var b strings.Builder
	if c.withErr {
		fmt.Fprintf(&b, "var %s, %sErr = %s\n", inst, name, c.expr)
	} else {
		fmt.Fprintf(&b, "var %s = %s\n", inst, c.expr)
	}

	fmt.Fprintf(&b, "\nfunc %s%s() error {\n", name, shimRenew)
	if c.withErr {
		fmt.Fprintf(&b, "\tnext, err := %s\n\tif err != nil {\n\t\treturn err\n\t}\n\t%s = next\n\treturn nil\n", c.expr, inst)
	} else {
		fmt.Fprintf(&b, "\t%s = %s\n\treturn nil\n", inst, c.expr)
	}
	b.WriteString("}\n")

	fmt.Fprintf(&b, "\nfunc %s%s() error {\n", name, shimStart)
	b.WriteString(callResults(inst+"."+opStart+"()", methods[opStart].decl.Type.Results))
	b.WriteString("}\n")

	fmt.Fprintf(&b, "\nfunc %s%s() interface{} {\n", name, shimStats)
	b.WriteString(statsResult(inst+"."+opStats+"()", methods[opStats].decl.Type.Results))
	b.WriteString("}\n")

	if listener != "" {
		fmt.Fprintf(&b, "\nfunc %s%s(fn func(interface{})) error {\n", name, shimBind)
		b.WriteString(callResults(inst+"."+opListener+"("+listener+")", methods[opListener].decl.Type.Results))
		b.WriteString("}\n")
	}
	return b.String()
}

// loadShim looks up the functions declared by shimSource.
func loadShim(ctx context.Context, s *Scope, name string, withBind bool) (unitFuncs, error) {
	var fns unitFuncs
	lookup := func(suffix string) (interface{}, error) {
		v, err := s.lookupFunc(ctx, name+suffix)
		if err != nil {
			return nil, err
		}
		return v.Interface(), nil
	}

	var ok bool
	raw, err := lookup(shimRenew)
	if err != nil {
		return fns, err
	}
	if fns.renew, ok = raw.(func() error); !ok {
		return fns, fmt.Errorf("unexpected renew type %T", raw)
	}
	if raw, err = lookup(shimStart); err != nil {
		return fns, err
	}
	if fns.start, ok = raw.(func() error); !ok {
		return fns, fmt.Errorf("unexpected start type %T", raw)
	}
	if raw, err = lookup(shimStats); err != nil {
		return fns, err
	}
	if fns.stats, ok = raw.(func() interface{}); !ok {
		return fns, fmt.Errorf("unexpected stats type %T", raw)
	}
	if !withBind {
		return fns, nil
	}
	if raw, err = lookup(shimBind); err != nil {
		return fns, err
	}
	if fns.bind, ok = raw.(func(func(interface{})) error); !ok {
		return fns, fmt.Errorf("unexpected bind type %T", raw)
	}
	return fns, nil
}
