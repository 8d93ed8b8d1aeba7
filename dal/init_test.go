package dal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The service layer calls GetDB on every mutating operation and skips
// persistence entirely when it returns nil, so a nil global client must
// never be wrapped with a context.
func TestGetDBNilWithoutInit(t *testing.T) {
	saved := GlobalDBClient
	GlobalDBClient = nil
	defer func() { GlobalDBClient = saved }()

	assert.Nil(t, GetDB(context.Background()))
}
