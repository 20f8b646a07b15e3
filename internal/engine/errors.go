package engine

import "errors"

// Domain errors for model construction and control.
var (
	// ErrInvalidModel indicates a model file that cannot be compiled into a Model.
	ErrInvalidModel = errors.New("engine: invalid model")

	// ErrUnknownActuator indicates an actuator name absent from the actuator table.
	ErrUnknownActuator = errors.New("engine: unknown actuator")

	// ErrActuatorIndex indicates an actuator index outside [0, NumActuators).
	ErrActuatorIndex = errors.New("engine: actuator index out of range")
)
