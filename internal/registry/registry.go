// Package registry resolves textual capability references and owns the
// process's reader, evaluator, and wrapper registrations. There is no
// dynamic import: capabilities self-register at process start by binding a
// container (a named symbol table) into the registry, and references of the
// form "container.path.Symbol" are looked up against those tables. The
// registry is explicit state passed by reference to whatever constructs the
// runner and evaluators, not an ambient global.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-crucible/internal/domain"
)

// Symbol is any value bound into a container: a Callable for functions under
// test, or a factory for readers, evaluators, and wrappers.
type Symbol any

// Callable is the invocation contract for resolved functions. The content
// mapping of the input record is passed as named arguments; the returned
// Value is the raw output recorded on the experiment result.
type Callable func(ctx context.Context, args map[string]domain.Value) (domain.Value, error)

// Registration pairs a capability symbol with its optional configuration
// symbol, stored under a short name in one of the three namespaces.
type Registration struct {
	// Name is the short name the capability was registered under.
	Name string

	// Capability is the resolved primary symbol (class reference).
	Capability Symbol

	// Config is the resolved configuration symbol, nil when the declaration
	// carried no config reference.
	Config Symbol
}

// Registry owns the compiled-in symbol tables and the three independently
// keyed capability namespaces. All methods are safe for concurrent use.
// Last registration for a given name wins; there is no duplicate detection.
type Registry struct {
	mu sync.RWMutex

	containers map[string]map[string]Symbol

	readers    map[string]Registration
	evaluators map[string]Registration
	wrappers   map[string]Registration
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		containers: make(map[string]map[string]Symbol),
		readers:    make(map[string]Registration),
		evaluators: make(map[string]Registration),
		wrappers:   make(map[string]Registration),
	}
}

// BindContainer makes a symbol table resolvable under the given container
// path. Symbols are copied; binding the same path again merges on top of the
// previous symbols, last binding wins per symbol name.
func (r *Registry) BindContainer(path string, symbols map[string]Symbol) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, ok := r.containers[path]
	if !ok {
		table = make(map[string]Symbol, len(symbols))
		r.containers[path] = table
	}
	for name, sym := range symbols {
		table[name] = sym
	}
}

// Resolve splits a reference on its last separator into a container path and
// a symbol name, looks the container up, and returns the symbol. Fails with
// a ResolutionError if the reference is malformed, the container is not
// bound, or the symbol does not exist.
func (r *Registry) Resolve(ref string) (Symbol, error) {
	idx := strings.LastIndex(ref, ".")
	if idx <= 0 || idx == len(ref)-1 {
		return nil, &ResolutionError{Ref: ref, Err: ErrMalformedReference}
	}
	containerPath, symbolName := ref[:idx], ref[idx+1:]

	r.mu.RLock()
	defer r.mu.RUnlock()

	table, ok := r.containers[containerPath]
	if !ok {
		return nil, &ResolutionError{Ref: ref, Err: fmt.Errorf("%w: %s", ErrUnknownContainer, containerPath)}
	}
	sym, ok := table[symbolName]
	if !ok {
		return nil, &ResolutionError{Ref: ref, Err: fmt.Errorf("%w: %s", ErrUnknownSymbol, symbolName)}
	}
	return sym, nil
}

// Call resolves a reference and invokes it with the given named arguments.
// Errors returned by the callable, and panics it raises, propagate to the
// caller tagged as an InvocationError.
func (r *Registry) Call(ctx context.Context, ref string, args map[string]domain.Value) (out domain.Value, err error) {
	sym, err := r.Resolve(ref)
	if err != nil {
		return domain.Value{}, err
	}

	fn, ok := sym.(Callable)
	if !ok {
		// Accept the raw function type too, so callers need not convert.
		raw, okRaw := sym.(func(context.Context, map[string]domain.Value) (domain.Value, error))
		if !okRaw {
			return domain.Value{}, &InvocationError{Ref: ref, Err: ErrNotCallable}
		}
		fn = raw
	}

	defer func() {
		if rec := recover(); rec != nil {
			out = domain.Value{}
			err = &InvocationError{Ref: ref, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	out, callErr := fn(ctx, args)
	if callErr != nil {
		return domain.Value{}, &InvocationError{Ref: ref, Err: callErr}
	}
	return out, nil
}

// RegisterReader resolves both references and stores the pair under name in
// the reader namespace. The config reference is optional (empty string).
// A failed resolution leaves the namespace untouched.
func (r *Registry) RegisterReader(name, classRef, configRef string) error {
	return r.register(name, classRef, configRef, func(reg Registration) {
		r.readers[name] = reg
	})
}

// RegisterEvaluator resolves both references and stores the pair under name
// in the evaluator namespace.
func (r *Registry) RegisterEvaluator(name, classRef, configRef string) error {
	return r.register(name, classRef, configRef, func(reg Registration) {
		r.evaluators[name] = reg
	})
}

// RegisterWrapper resolves both references and stores the pair under name in
// the variation-wrapper namespace.
func (r *Registry) RegisterWrapper(name, classRef, configRef string) error {
	return r.register(name, classRef, configRef, func(reg Registration) {
		r.wrappers[name] = reg
	})
}

// register resolves the declaration atomically: both references must resolve
// before the store callback runs, so a bad declaration never partially
// registers.
func (r *Registry) register(name, classRef, configRef string, store func(Registration)) error {
	capability, err := r.Resolve(classRef)
	if err != nil {
		return err
	}

	var config Symbol
	if configRef != "" {
		config, err = r.Resolve(configRef)
		if err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	store(Registration{Name: name, Capability: capability, Config: config})
	return nil
}

// Reader returns the registration stored under name in the reader namespace.
func (r *Registry) Reader(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.readers[name]
	return reg, ok
}

// Evaluator returns the registration stored under name in the evaluator
// namespace.
func (r *Registry) Evaluator(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.evaluators[name]
	return reg, ok
}

// Wrapper returns the registration stored under name in the wrapper
// namespace.
func (r *Registry) Wrapper(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.wrappers[name]
	return reg, ok
}
