package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyExecError(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCode
	}{
		{nil, ErrCodeNone},
		{errors.New("could not find node for selector"), ErrCodeElementNotFound},
		{errors.New("waiting for selector #x failed"), ErrCodeElementNotFound},
		{context.DeadlineExceeded, ErrCodeTimeout},
		{fmt.Errorf("click: %w", context.DeadlineExceeded), ErrCodeTimeout},
		{errors.New("operation timeout while clicking"), ErrCodeTimeout},
		{errors.New("page load error net::ERR_CONNECTION_REFUSED"), ErrCodeNavigationError},
		{errors.New("navigation failed"), ErrCodeNavigationError},
		{errors.New("target closed"), ErrCodeSessionLost},
		{errors.New("session abc is closed"), ErrCodeSessionLost},
		{errors.New("websocket: close 1006"), ErrCodeSessionLost},
		{errors.New("something else entirely"), ErrCodeExecutionFailure},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyExecError(tc.err), "error: %v", tc.err)
	}
}
