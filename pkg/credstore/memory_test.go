package credstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wishkro/wishkro-go/pkg/credstore"
)

func TestMemoryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := credstore.NewMemory()

	_, err := st.Get(ctx, credstore.KeyUser)
	require.ErrorIs(t, err, credstore.ErrNotFound)

	require.NoError(t, st.Set(ctx, credstore.KeyUser, `{"name":"A"}`))

	got, err := st.Get(ctx, credstore.KeyUser)
	require.NoError(t, err)
	require.Equal(t, `{"name":"A"}`, got)

	require.NoError(t, st.Remove(ctx, credstore.KeyUser))
	_, err = st.Get(ctx, credstore.KeyUser)
	require.ErrorIs(t, err, credstore.ErrNotFound)

	require.NoError(t, st.Remove(ctx, credstore.KeyUser))
	require.NoError(t, st.Close())
}
