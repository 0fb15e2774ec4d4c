package store

import "context"

// WithStates returns a Store that serves States from states and everything
// else from base. Transactions opened on the result keep the override.
func WithStates(base Store, states States) Store {
	return &overlay{Store: base, states: states}
}

type overlay struct {
	Store
	states States
}

func (o *overlay) States() States { return o.states }

func (o *overlay) Tx(ctx context.Context) (Tx, error) {
	tx, err := o.Store.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &overlayTx{Store: tx, tx: tx, states: o.states}, nil
}

func (o *overlay) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return o.Store.WithTx(ctx, func(tx Tx) error {
		return fn(&overlayTx{Store: tx, tx: tx, states: o.states})
	})
}

// overlayTx serves repositories through the embedded Store and finishes
// through tx.
type overlayTx struct {
	Store
	tx     Tx
	states States
}

func (t *overlayTx) States() States  { return t.states }
func (t *overlayTx) Commit() error   { return t.tx.Commit() }
func (t *overlayTx) Rollback() error { return t.tx.Rollback() }
