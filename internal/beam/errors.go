package beam

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned by New for unusable construction
	// parameters.
	ErrInvalidConfig = errors.New("beam: invalid config")
	// ErrShapeMismatch is returned by Advance when the score matrix does not
	// match the beam width or the vocabulary size of earlier steps.
	ErrShapeMismatch = errors.New("beam: score matrix shape mismatch")
	// ErrContractViolation is wrapped by the panics raised for internal
	// invariant breaks, such as replaying a finished hypothesis from a cell
	// that does not hold the end token.
	ErrContractViolation = errors.New("beam: contract violation")
)

// ContractError is the panic value used for invariant breaks. Callers that
// isolate failures per example recover it and treat it as an error.
type ContractError struct {
	Op  string
	Msg string
}

func (e *ContractError) Error() string {
	return "beam: " + e.Op + ": " + e.Msg
}

func (e *ContractError) Unwrap() error {
	return ErrContractViolation
}

func violate(op, format string, args ...any) {
	panic(&ContractError{Op: op, Msg: fmt.Sprintf(format, args...)})
}
