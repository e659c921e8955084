package qmp

// errorClass is the QMP "class" field of an {"error":{...}} reply.
type errorClass string

const (
	classGenericError    errorClass = "GenericError"
	classCommandNotFound errorClass = "CommandNotFound"
)

// cmdError pairs a QMP error class with a human-readable description. It
// satisfies the error interface so command handlers can return it like any
// other error.
type cmdError struct {
	class errorClass
	desc  string
}

func (e *cmdError) Error() string { return e.desc }

func genericError(desc string) *cmdError {
	return &cmdError{class: classGenericError, desc: desc}
}

func commandNotFound(name string) *cmdError {
	return &cmdError{class: classCommandNotFound, desc: "The command " + name + " has not been found"}
}
