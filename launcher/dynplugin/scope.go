package dynplugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"reflect"
	"sync"

	"github.com/spf13/afero"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

const goPath = "./_pk"

// ErrScopeReleased is returned when calling into a bundle whose
// interpreter has already been dropped.
var ErrScopeReleased = errors.New("bundle scope released")

// CallError wraps a failure raised while running bundle code.
type CallError struct {
	Bundle string
	Op     string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("bundle %s: %s: %v", e.Bundle, e.Op, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Stdio is the console a bundle interpreter is wired to.
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Scope is the isolation context of one bundle: a dedicated interpreter
// whose symbols are resolved only from that bundle's sources and the
// standard library. It lives while any adapter holds a reference.
type Scope struct {
	name string

	mu      sync.Mutex
	interp  *interp.Interpreter
	refs    int
	aliases map[string]string // import path -> local name
	imports map[string]string // local name -> import path
	bridges map[string]string // listener type -> bridge type name
	seq     int
}

func newScope(b *Bundle, stdio Stdio) (*Scope, error) {
	mem := afero.NewMemMapFs()
	for rel, src := range b.sources {
		full := path.Join(goPath, rel)
		if err := mem.MkdirAll(path.Dir(full), 0o755); err != nil {
			return nil, err
		}
		if err := afero.WriteFile(mem, full, src, 0o644); err != nil {
			return nil, err
		}
	}

	opts := interp.Options{
		GoPath:               goPath,
		SourcecodeFilesystem: afero.NewIOFS(mem),
		Stdin:                stdio.Stdin,
		Stdout:               stdio.Stdout,
		Stderr:               stdio.Stderr,
	}
	i := interp.New(opts)
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}
	return &Scope{
		name:    b.Name,
		interp:  i,
		refs:    1,
		aliases: make(map[string]string),
		imports: make(map[string]string),
		bridges: make(map[string]string),
	}, nil
}

// Name returns the bundle name.
func (s *Scope) Name() string { return s.name }

// Refs returns the live reference count.
func (s *Scope) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

func (s *Scope) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs <= 0 {
		return false
	}
	s.refs++
	return true
}

// Release drops one reference. The interpreter is discarded with the last.
func (s *Scope) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs <= 0 {
		return
	}
	s.refs--
	if s.refs == 0 {
		s.interp = nil
		s.aliases = nil
		s.imports = nil
		s.bridges = nil
	}
}

// Do runs fn against this scope. The scope stays alive for the duration
// of the call and panics raised by bundle code come back as a *CallError.
func (s *Scope) Do(ctx context.Context, op string, fn func(ctx context.Context) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.acquire() {
		return &CallError{Bundle: s.name, Op: op, Err: ErrScopeReleased}
	}
	defer s.Release()
	defer func() {
		if r := recover(); r != nil {
			err = &CallError{Bundle: s.name, Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(ctx); err != nil {
		var callErr *CallError
		if errors.As(err, &callErr) {
			return err
		}
		return &CallError{Bundle: s.name, Op: op, Err: err}
	}
	return nil
}

func (s *Scope) evalLocked(ctx context.Context, src string) (reflect.Value, error) {
	if s.interp == nil {
		return reflect.Value{}, ErrScopeReleased
	}
	return s.interp.EvalWithContext(ctx, src)
}

// importPackage makes a bundle package visible under a generated name.
func (s *Scope) importPackage(ctx context.Context, importPath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alias, ok := s.aliases[importPath]; ok {
		return alias, nil
	}
	alias := fmt.Sprintf("bundlepkg%d", len(s.aliases))
	if err := s.importLocked(ctx, alias, importPath); err != nil {
		return "", err
	}
	s.aliases[importPath] = alias
	return alias, nil
}

// importNamed brings in an import a generated signature refers to.
func (s *Scope) importNamed(ctx context.Context, imports []importSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, imp := range imports {
		if err := s.importLocked(ctx, imp.name, imp.path); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scope) importLocked(ctx context.Context, name, importPath string) error {
	if existing, ok := s.imports[name]; ok {
		if existing != importPath {
			return fmt.Errorf("import name %s already bound to %s", name, existing)
		}
		return nil
	}
	if _, err := s.evalLocked(ctx, fmt.Sprintf("import %s %q", name, importPath)); err != nil {
		return fmt.Errorf("import %s: %w", importPath, err)
	}
	s.imports[name] = importPath
	return nil
}

// declareBridge evaluates a bridge type once per expected listener type.
func (s *Scope) declareBridge(ctx context.Context, key string, gen func(typeName string) (string, []importSpec, error)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name, ok := s.bridges[key]; ok {
		return name, nil
	}
	name, err := s.declareLocked(ctx, "launcherBridge", gen)
	if err != nil {
		return "", fmt.Errorf("declare bridge for %s: %w", key, err)
	}
	s.bridges[key] = name
	return name, nil
}

// declare evaluates generated top-level declarations under a fresh name.
func (s *Scope) declare(ctx context.Context, base string, gen func(name string) (string, []importSpec, error)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.declareLocked(ctx, base, gen)
}

func (s *Scope) declareLocked(ctx context.Context, base string, gen func(name string) (string, []importSpec, error)) (string, error) {
	if s.interp == nil {
		return "", ErrScopeReleased
	}
	name := fmt.Sprintf("%s%d", base, s.seq)
	s.seq++
	src, imports, err := gen(name)
	if err != nil {
		return "", err
	}
	for _, imp := range imports {
		if err := s.importLocked(ctx, imp.name, imp.path); err != nil {
			return "", err
		}
	}
	if _, err := s.evalLocked(ctx, src); err != nil {
		return "", err
	}
	return name, nil
}

// lookupFunc returns the function a declared name is bound to.
func (s *Scope) lookupFunc(ctx context.Context, name string) (reflect.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.evalLocked(ctx, name)
	if err != nil {
		return reflect.Value{}, err
	}
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) && !v.IsNil() {
		v = v.Elem()
	}
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("%s is not a function", name)
	}
	return v, nil
}
