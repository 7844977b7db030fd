package repository

import "context"

type Tx = interface{}

var NoTX interface{}

// TransactionManager runs fn inside a store transaction and hands the
// backend-specific handle to repositories through tx.
//
// Repositories accept that handle as `qx any`; a nil qx means the call runs
// on the pool outside any transaction. fn returning an error rolls back.
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
