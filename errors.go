package provision

import "fmt"

// InfrastructureError reports a failure of the service's own infrastructure,
// such as the record store or the workspace filesystem, as opposed to a
// failure of the executed commands.
type InfrastructureError struct {
	// Op names the operation that failed, e.g. "write config".
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure failure during %s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// infraErr wraps err as an InfrastructureError unless it is nil.
func infraErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &InfrastructureError{Op: op, Err: err}
}
