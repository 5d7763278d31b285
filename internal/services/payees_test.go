package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
	"github.com/galexy/revivo-mk1-sub001/internal/repository"
	"github.com/galexy/revivo-mk1-sub001/internal/repository/memory"
	"github.com/galexy/revivo-mk1-sub001/internal/storage"
)

func TestRenamePayeeRejectsDuplicateName(t *testing.T) {
	stores := map[string]func(t *testing.T) repository.Store{
		"memory": func(*testing.T) repository.Store { return memory.New() },
		"sqlite": func(t *testing.T) repository.Store {
			s, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
			require.NoError(t, err)
			return s
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			pub := &recordingPublisher{}
			l := NewLedger(open(t), pub)
			t.Cleanup(func() { l.Close() })

			var acme, beta *core.Payee
			require.NoError(t, l.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
				var err error
				if acme, err = uow.Payees().GetOrCreate(ctx, hh, "Acme"); err != nil {
					return err
				}
				beta, err = uow.Payees().GetOrCreate(ctx, hh, "Beta")
				return err
			}))

			err := l.RenamePayee(ctx, beta.ID(), "  ACME ")
			require.Error(t, err)
			assert.Equal(t, core.CodeDuplicateName, core.CodeOf(err))
			assert.ErrorIs(t, err, core.ErrValidation)
			assert.Empty(t, pub.names())

			got, err := l.GetPayee(ctx, beta.ID())
			require.NoError(t, err)
			assert.Equal(t, "Beta", got.Name())

			// Changing only the case of a payee's own name is allowed.
			require.NoError(t, l.RenamePayee(ctx, acme.ID(), "ACME"))
			found, err := l.SearchPayees(ctx, hh, "acme", 0)
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, acme.ID(), found[0].ID())
			assert.Equal(t, "ACME", found[0].Name())
		})
	}
}
