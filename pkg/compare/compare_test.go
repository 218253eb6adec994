package compare_test

import (
	"testing"

	"github.com/pseudomuto/chkit/pkg/compare"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestPointers(t *testing.T) {
	require.True(t, compare.Pointers[bool](nil, nil))
	require.True(t, compare.Pointers(ptr(true), ptr(true)))
	require.False(t, compare.Pointers(ptr(true), ptr(false)))
	require.False(t, compare.Pointers(nil, ptr(false)), "nil is not the zero value")
}

func TestValues(t *testing.T) {
	require.True(t, compare.Values[string](nil, nil))
	require.True(t, compare.Values(nil, ptr("")), "absent clause equals empty clause")
	require.True(t, compare.Values(ptr("toDate(ts)"), ptr("toDate(ts)")))
	require.False(t, compare.Values(ptr("toDate(ts)"), nil))
}

func TestSlices(t *testing.T) {
	require.True(t, compare.Slices[string](nil, nil))
	require.True(t, compare.Slices([]string{"id", "ts"}, []string{"id", "ts"}))
	require.False(t, compare.Slices([]string{"id", "ts"}, []string{"ts", "id"}), "order matters")
	require.False(t, compare.Slices([]string{"id"}, []string{"id", "ts"}))
}
