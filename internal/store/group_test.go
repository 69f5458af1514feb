package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type brokenClearer struct{ cleared bool }

func (b *brokenClearer) Name() string { return "broken" }
func (b *brokenClearer) ClearAll(context.Context) error {
	b.cleared = true
	return errors.New("cannot clear")
}

func TestGroup_ClearAllReachesEveryMember(t *testing.T) {
	g := NewGroup(zaptest.NewLogger(t))
	ctx := context.Background()

	v := Add(g, NewValue("v", func(context.Context) (int, error) { return 1, nil }))
	k := Add(g, NewKeyed("k", func(_ context.Context, key string) (int, error) { return len(key), nil }))
	broken := Add(g, &brokenClearer{})
	p := Add(g, NewPaged("p", func(_ context.Context, page int) ([]int, error) {
		if page > 1 {
			return nil, nil
		}
		return []int{1}, nil
	}))

	_, _ = v.GetCached(ctx)
	_, _ = k.GetCached(ctx, "abc")
	_, _ = p.GetCachedPage(ctx)

	err := g.ClearAll(ctx)
	require.Error(t, err)
	require.True(t, broken.cleared)

	_, ok := v.Peek()
	require.False(t, ok)
	_, ok = k.Peek("abc")
	require.False(t, ok)
	require.False(t, p.Finished())
	require.Equal(t, []string{"v", "k", "broken", "p"}, g.Names())
}
