package uow

import "context"

// Scope is the unit of work a handler runs in. It reuses the unit already carried by
// the context (opened by the Transaction middleware) or begins and owns a new one.
type Scope struct {
	Unit UnitOfWork
	Ctx  context.Context

	owned bool
	done  bool
}

func Enter(ctx context.Context, factory UoWFactory, opts TxOptions) (*Scope, error) {
	if unit, ok := FromContext(ctx); ok {
		return &Scope{Unit: unit, Ctx: ctx}, nil
	}
	if factory == nil {
		return nil, ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Scope{Unit: unit, Ctx: Attach(ctx, unit), owned: true}, nil
}

// Commit commits an owned unit; a borrowed unit is committed by its owner.
func (s *Scope) Commit() error {
	if !s.owned || s.done {
		return nil
	}
	s.done = true
	return s.Unit.Commit(s.Ctx)
}

// Close rolls back an owned unit that was not committed. Safe to defer.
func (s *Scope) Close() {
	if !s.owned || s.done {
		return
	}
	s.done = true
	_ = s.Unit.Rollback(s.Ctx)
}
