package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries the request context into a repo call, plus the transaction to run in when
// the caller already opened one.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// For binds ctx with no transaction.
func For(ctx context.Context) Context {
	return Context{Ctx: ctx}
}

// WithTx returns a copy of c that runs on tx.
func (c Context) WithTx(tx *gorm.DB) Context {
	c.Tx = tx
	return c
}

// DB picks the transaction when set and base otherwise, bound to c.Ctx.
func (c Context) DB(base *gorm.DB) *gorm.DB {
	handle := c.Tx
	if handle == nil {
		handle = base
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return handle.WithContext(ctx)
}
