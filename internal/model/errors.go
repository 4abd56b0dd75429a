package model

import "github.com/rotisserie/eris"

// Sentinel errors for the costing core. Callers branch with errors.Is; the
// packages that raise them add context via eris.Wrap.
var (
	// ErrInvalidInput means the caller supplied a structurally invalid value
	// (non-positive quantity, negative price). Never retried automatically.
	ErrInvalidInput = eris.New("invalid input")

	// ErrNotFound means a referenced ingredient or recipe does not exist.
	ErrNotFound = eris.New("not found")

	// ErrInvalidServings means a recipe's servings count is not positive, so
	// a per-unit cost cannot be derived.
	ErrInvalidServings = eris.New("invalid servings")
)
