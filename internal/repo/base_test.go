package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaskub292929/to-korea-sub000/pkg/db/dbtest"
)

type ctxKey struct{}

func TestBaseDBBindsContext(t *testing.T) {
	conn := dbtest.Open(t)
	base := NewBase(conn)

	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	withCtx := base.DB(ctx)
	require.NotNil(t, withCtx.Statement)
	assert.Equal(t, ctx, withCtx.Statement.Context)

	assert.Same(t, conn, base.DB(nil))
}

func TestBaseBind(t *testing.T) {
	conn := dbtest.Open(t)
	base := NewBase(conn)

	assert.Same(t, conn, base.Bind(nil).Raw())

	tx := conn.Begin()
	defer tx.Rollback()
	assert.Same(t, tx, base.Bind(tx).Raw())
	assert.Same(t, conn, base.Raw())
}
