// Package machine provides the interpreter personalities: ConstEval for
// compile-time evaluation and Checker for executing programs while tracking
// pointer provenance.
package machine

import (
	"fmt"
	"strings"

	"mirvm/internal/interp"
)

// Personality selects a machine implementation.
type Personality uint8

const (
	PersonalityConstEval Personality = iota
	PersonalityChecker
)

func (p Personality) String() string {
	if p == PersonalityChecker {
		return "checker"
	}
	return "const-eval"
}

// ParsePersonality accepts "const-eval" (or "consteval", "ctfe") and "checker".
func ParsePersonality(s string) (Personality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "const-eval", "consteval", "ctfe":
		return PersonalityConstEval, nil
	case "checker", "check":
		return PersonalityChecker, nil
	default:
		return 0, fmt.Errorf("unknown machine personality %q (expected const-eval or checker)", s)
	}
}

// Config holds machine-side limits. Zero means unlimited.
type Config struct {
	// ConstEvalSteps bounds ConstEvalCounter statements under ConstEval.
	ConstEvalSteps uint64
	// Terminators bounds executed terminators under Checker.
	Terminators uint64
}

// New creates a fresh machine. Machines keep per-evaluation state and must
// not be shared between interpreter contexts.
func New(p Personality, cfg Config) interp.Machine {
	if p == PersonalityChecker {
		return NewChecker(cfg.Terminators)
	}
	return NewConstEval(cfg.ConstEvalSteps)
}
