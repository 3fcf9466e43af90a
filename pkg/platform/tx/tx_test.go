package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTx(t *testing.T) {
	t.Run("nil transaction leaves context untouched", func(t *testing.T) {
		ctx := context.Background()
		assert.Equal(t, ctx, WithTx(ctx, nil))
		_, ok := From(ctx)
		assert.False(t, ok)
	})

	t.Run("stored transaction is found", func(t *testing.T) {
		tx := &sql.Tx{}
		got, ok := From(WithTx(context.Background(), tx))
		assert.True(t, ok)
		assert.Same(t, tx, got)
	})
}

func TestRunJoinsOuterTransaction(t *testing.T) {
	outer := WithTx(context.Background(), &sql.Tx{})
	called := false

	// the nil db is never touched when a transaction is already present
	err := Run(outer, nil, func(ctx context.Context) error {
		called = true
		inner, ok := From(ctx)
		assert.True(t, ok)
		assert.NotNil(t, inner)
		return nil
	})

	assert.NoError(t, err)
	assert.True(t, called)
}
