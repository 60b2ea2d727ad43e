package engine

import (
	"context"
	"log/slog"

	"github.com/seedloom/seedloom/internal/catalog"
	"github.com/seedloom/seedloom/internal/document"
)

// Result is the terminal outcome of a successful load: per-type creation
// counts plus the number of many-to-many associations. A failed run returns
// an error and no Result - there is no partial success.
type Result struct {
	Created      map[string]int `json:"created"`
	Associations int            `json:"associations"`
}

// Total returns the number of records created across all types.
func (r *Result) Total() int {
	n := 0
	for _, c := range r.Created {
		n += c
	}
	return n
}

// Loader materializes seed documents into a store. One Loader may serve
// many invocations; each invocation gets its own reference table and lookup
// cache, so concurrent hosts only need to serialize calls per store
// transaction, not share engine state.
type Loader struct {
	cat         *catalog.Catalog
	store       Store
	refKeyField string
	log         *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithRefKeyField overrides the document field that marks an explicit
// reference key (default "$ref").
func WithRefKeyField(field string) Option {
	return func(l *Loader) {
		if field != "" {
			l.refKeyField = field
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// New creates a Loader over a model catalog and a storage collaborator.
func New(cat *catalog.Catalog, store Store, opts ...Option) *Loader {
	l := &Loader{
		cat:         cat,
		store:       store,
		refKeyField: DefaultRefKeyField,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Plan builds and orders the creation plan without touching the store.
// All structural errors (duplicate or unknown keys, self references,
// schema mismatches, cycles) surface here.
func (l *Loader) Plan(doc document.Document) (*Plan, error) {
	plan, _, err := l.plan(doc)
	return plan, err
}

// Load materializes a document: plan, then a single-transaction execution.
// Structurally invalid documents fail before any store access.
func (l *Loader) Load(ctx context.Context, doc document.Document) (*Result, error) {
	plan, refs, err := l.plan(doc)
	if err != nil {
		return nil, err
	}
	l.log.Info("creation plan ready", "nodes", len(plan.Order))

	exec := &executor{
		refs:  refs,
		cache: NewLookupCache(),
		log:   l.log,
	}
	result, err := exec.run(ctx, l.store, plan)
	if err != nil {
		return nil, err
	}
	l.log.Info("load complete",
		"created", result.Total(), "associations", result.Associations,
		"lookups", exec.cache.Misses())
	return result, nil
}

func (l *Loader) plan(doc document.Document) (*Plan, *ReferenceTable, error) {
	nodes, refs, err := buildNodes(doc, l.cat, l.refKeyField)
	if err != nil {
		return nil, nil, err
	}
	graph, err := buildGraph(nodes, refs)
	if err != nil {
		return nil, nil, err
	}
	plan, err := schedule(graph)
	if err != nil {
		return nil, nil, err
	}
	return plan, refs, nil
}
