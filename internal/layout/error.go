package layout

import (
	"fmt"
	"strings"

	"mirvm/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursive indicates a recursive type with no indirection.
	LayoutErrRecursive LayoutErrorKind = iota + 1
	LayoutErrTooGeneric
	LayoutErrTooLarge
	LayoutErrInvalid
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  types.TypeID
	Label string
	Cycle []types.TypeID // for LayoutErrRecursive
	Err   error          // for LayoutErrTooLarge
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	name := e.Label
	if name == "" {
		name = fmt.Sprintf("type#%d", e.Type)
	}
	switch e.Kind {
	case LayoutErrRecursive:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive type %s has infinite size", name)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("recursive type %s has infinite size (cycle: %s)", name, strings.Join(parts, " -> "))
	case LayoutErrTooGeneric:
		return fmt.Sprintf("layout of %s depends on an uninstantiated generic parameter", name)
	case LayoutErrTooLarge:
		if e.Err != nil {
			return fmt.Sprintf("type %s is too large: %v", name, e.Err)
		}
		return fmt.Sprintf("type %s is too large", name)
	case LayoutErrInvalid:
		return fmt.Sprintf("type %s has no layout", name)
	default:
		return fmt.Sprintf("layout error kind=%d %s", e.Kind, name)
	}
}

func (e *LayoutError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
