package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialect_Placeholder(t *testing.T) {
	assert.Equal(t, "$1", DialectPostgres.Placeholder(1))
	assert.Equal(t, "$2", DialectPostgres.Placeholder(2))
	assert.Equal(t, "?", DialectMySQL.Placeholder(2))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(DriverMySQL, "u:p@tcp(localhost:3306)/classiflow")
	assert.Equal(t, DriverMySQL, cfg.Driver)
	assert.Equal(t, int32(4), cfg.MaxConns)
	assert.Positive(t, cfg.ConnectTimeout)
}
