package vm

import (
	"errors"
	"strings"

	"github.com/dop251/goja"
)

// classify maps an error returned from invoking a compiled handler to the
// ExitReason the sandbox package needs to decide whether the call was
// killed by a monitor, overran its stack, or the guest simply threw.
func classify(err error) ExitReason {
	if err == nil {
		return ExitNormal
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return ExitKilled
	}
	if isStackOverflow(err) {
		return ExitStackOverflow
	}
	return ExitGuestAbort
}

func isStackOverflow(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "stack overflow") || strings.Contains(msg, "call stack size") || strings.Contains(msg, "stack size exceeded")
}
