package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes load errors.
type ErrorCode string

const (
	// ErrCodeDuplicateReferenceKey indicates two declarations share one
	// reference key. Keys are a single flat namespace across all types.
	ErrCodeDuplicateReferenceKey ErrorCode = "DUPLICATE_REFERENCE_KEY"

	// ErrCodeUnknownReference indicates a symbolic reference to a key no
	// declaration defines.
	ErrCodeUnknownReference ErrorCode = "UNKNOWN_REFERENCE"

	// ErrCodeSelfReference indicates a node symbolically references its own
	// key.
	ErrCodeSelfReference ErrorCode = "SELF_REFERENCE"

	// ErrCodeCyclicDependency indicates declarations that cannot be ordered.
	// The error carries the minimal offending cycle as reference keys.
	ErrCodeCyclicDependency ErrorCode = "CYCLIC_DEPENDENCY"

	// ErrCodeLookupNotFound indicates a store lookup matched zero records.
	ErrCodeLookupNotFound ErrorCode = "LOOKUP_NOT_FOUND"

	// ErrCodeAmbiguousLookup indicates a store lookup matched more than one
	// record. Never silently downgraded to picking one.
	ErrCodeAmbiguousLookup ErrorCode = "AMBIGUOUS_LOOKUP"

	// ErrCodeSchemaMismatch indicates a document field the model catalog
	// does not recognize.
	ErrCodeSchemaMismatch ErrorCode = "SCHEMA_MISMATCH"

	// ErrCodeStorage wraps a failure reported by the storage collaborator.
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"

	// ErrCodeInternal indicates a broken engine invariant, not a document
	// problem - e.g. a scheduled node whose dependency was never resolved.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// LoadError is the terminal error of a load run. All load errors abort the
// whole run; none are retried. The structured fields carry enough context
// (reference key, entity type, cycle path) for the caller to fix the source
// document.
type LoadError struct {
	Code ErrorCode
	// Message is a human-readable description.
	Message string
	// Key is the reference key of the offending declaration, if any.
	Key string
	// EntityType is the namespace-qualified type involved, if any.
	EntityType string
	// Cycle holds the minimal dependency cycle as reference keys, for
	// ErrCodeCyclicDependency.
	Cycle []string
	// Err is the wrapped collaborator error, for ErrCodeStorage.
	Err error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Key != "" {
		fmt.Fprintf(&b, " (key=%s", e.Key)
		if e.EntityType != "" {
			fmt.Fprintf(&b, ", type=%s", e.EntityType)
		}
		b.WriteString(")")
	} else if e.EntityType != "" {
		fmt.Fprintf(&b, " (type=%s)", e.EntityType)
	}
	if len(e.Cycle) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Cycle, " -> "))
	}
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the error code from an error chain. Returns empty string
// for non-load errors.
func CodeOf(err error) ErrorCode {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsCycleError reports whether the error is a cyclic-dependency error.
func IsCycleError(err error) bool {
	return CodeOf(err) == ErrCodeCyclicDependency
}

func duplicateKeyError(key, entityType string) *LoadError {
	return &LoadError{
		Code:       ErrCodeDuplicateReferenceKey,
		Message:    "reference key already declared",
		Key:        key,
		EntityType: entityType,
	}
}

func unknownReferenceError(key, fromKey, fromType string) *LoadError {
	return &LoadError{
		Code:       ErrCodeUnknownReference,
		Message:    fmt.Sprintf("reference %q is not declared by any node", "$"+key),
		Key:        fromKey,
		EntityType: fromType,
	}
}

func selfReferenceError(node *EntityNode) *LoadError {
	return &LoadError{
		Code:       ErrCodeSelfReference,
		Message:    "node references its own key",
		Key:        node.Key,
		EntityType: node.Type,
	}
}

func cycleError(cycle []string) *LoadError {
	return &LoadError{
		Code:    ErrCodeCyclicDependency,
		Message: "declarations form a dependency cycle",
		Cycle:   cycle,
	}
}

func schemaMismatchError(field string, node *EntityNode) *LoadError {
	return &LoadError{
		Code:       ErrCodeSchemaMismatch,
		Message:    fmt.Sprintf("field %q is not defined by the model catalog", field),
		Key:        node.Key,
		EntityType: node.Type,
	}
}

func storageError(msg string, node *EntityNode, err error) *LoadError {
	le := &LoadError{
		Code:    ErrCodeStorage,
		Message: msg,
		Err:     err,
	}
	if node != nil {
		le.Key = node.Key
		le.EntityType = node.Type
	}
	return le
}

func internalError(format string, args ...any) *LoadError {
	return &LoadError{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
	}
}
