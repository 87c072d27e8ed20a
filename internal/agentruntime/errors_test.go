package agentruntime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionErrorUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := &ConnectionError{Cause: cause}
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "dial tcp: timeout")
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{FieldPath: "OrchestrationContext", Message: "field required"}
	assert.Contains(t, err.Error(), "OrchestrationContext")
	assert.Contains(t, err.Error(), "field required")
}
