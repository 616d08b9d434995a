package xerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, OK, CodeOf(nil))
	assert.Equal(t, Conflict, CodeOf(ErrDisconnected))
	assert.Equal(t, BadRequest, CodeOf(fmt.Errorf("bind: %w", ErrParam)))
	assert.Equal(t, InternalServerError, CodeOf(errors.New("boom")))
}
