package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func TestTransactionManager_Run(t *testing.T) {
	t.Parallel()

	errEmailTaken := errors.New("email taken")
	errBegin := errors.New("too many connections")

	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		run     func(tm *TransactionManager, ctx context.Context, fn func(context.Context) error) error
		fnErr   error
		wantErr error
		wantFn  bool
	}{
		{
			name: "read write commits",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
				mock.ExpectCommit()
			},
			run:    (*TransactionManager).WithinReadWrite,
			wantFn: true,
		},
		{
			name: "read write rolls back when registration fails",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
				mock.ExpectRollback()
			},
			run:     (*TransactionManager).WithinReadWrite,
			fnErr:   errEmailTaken,
			wantErr: errEmailTaken,
			wantFn:  true,
		},
		{
			name: "read only rolls back on error",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
				mock.ExpectRollback()
			},
			run:     (*TransactionManager).WithinReadOnly,
			fnErr:   errEmailTaken,
			wantErr: errEmailTaken,
			wantFn:  true,
		},
		{
			name: "begin failure skips fn",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite}).WillReturnError(errBegin)
			},
			run:     (*TransactionManager).WithinReadWrite,
			wantErr: errBegin,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create mock pool: %v", err)
			}
			defer mock.Close()
			tt.setup(mock)

			called := false
			err = tt.run(NewTransactionManager(mock), context.Background(), func(ctx context.Context) error {
				called = true
				if _, ok := txFromContext(ctx); !ok {
					t.Errorf("transaction not injected into context")
				}
				return tt.fnErr
			})

			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if called != tt.wantFn {
				t.Fatalf("fn called = %v, want %v", called, tt.wantFn)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestTransactionManager_JoinsOuterTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	tm := NewTransactionManager(mock)
	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
	mock.ExpectCommit()

	err = tm.WithinReadWrite(context.Background(), func(outer context.Context) error {
		outerTx, _ := txFromContext(outer)
		return tm.WithinReadOnly(outer, func(inner context.Context) error {
			innerTx, ok := txFromContext(inner)
			if !ok || innerTx != outerTx {
				t.Fatalf("inner call did not join the outer transaction")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("nested transaction returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransactionManager_IsolationLevel(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	tm := NewTransactionManager(mock, WithIsolation(pgx.Serializable))

	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite, IsoLevel: pgx.Serializable})
	mock.ExpectCommit()

	if err := tm.WithinReadWrite(context.Background(), func(ctx context.Context) error {
		if QueryerFromContext(ctx, nil) == nil {
			t.Fatalf("expected transaction queryer")
		}
		return nil
	}); err != nil {
		t.Fatalf("WithinReadWrite returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransactionManager_NilRunsWithoutTx(t *testing.T) {
	t.Parallel()

	if NewTransactionManager(nil) != nil {
		t.Fatal("expected nil manager for nil db")
	}

	var tm *TransactionManager
	called := false
	if err := tm.WithinReadWrite(context.Background(), func(ctx context.Context) error {
		called = true
		if _, ok := txFromContext(ctx); ok {
			t.Fatalf("unexpected transaction in context")
		}
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called")
	}
}
