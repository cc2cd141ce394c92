package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestDumpExtractsPgDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_applications_one_draft", TableName: "applications"}
	err := Wrap(CodeConflict, fmt.Errorf("insert: %w", pgErr), "create application")

	d := Dump(err)
	assert.Equal(t, CodeConflict, d.Code)
	assert.Equal(t, "23505", d.PGCode)
	assert.Equal(t, "ux_applications_one_draft", d.PGConstraint)
	assert.GreaterOrEqual(t, len(d.Chain), 2)

	fields := d.Fields()
	assert.Equal(t, "applications", fields["pg_table"])
}

func TestDumpFieldsOmitDriverDataWhenAbsent(t *testing.T) {
	fields := Dump(New(CodeNotFound, "application not found")).Fields()
	_, ok := fields["pg_code"]
	assert.False(t, ok)
	assert.Equal(t, CodeNotFound, fields["error_code"])
}
