package db_test

import (
	"strings"
	"testing"

	"github.com/dosacha/simvex-api/db"
	"github.com/dosacha/simvex-api/internal/upgrade"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Embedded scripts must run unchanged on postgres, mysql and sqlite:
// one statement each and no IF NOT EXISTS on CREATE INDEX.
func TestMigrations_PortableAcrossDrivers(t *testing.T) {
	scripts, err := upgrade.Validate(db.Migrations())
	require.NoError(t, err)

	for _, s := range scripts {
		t.Run(s.Name, func(t *testing.T) {
			upper := strings.ToUpper(s.SQL)
			assert.NotContains(t, upper, "IF NOT EXISTS")
			assert.Equal(t, 1, strings.Count(strings.TrimSpace(s.SQL), ";"))
			assert.True(t, strings.HasSuffix(strings.TrimSpace(s.SQL), ";"))
		})
	}
}
