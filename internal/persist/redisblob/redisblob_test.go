package redisblob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/and161185/campus-kit/internal/persist"
)

func TestStore_SaveLoad(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, "campus:alice")
	s.TTL = time.Hour
	ctx := context.Background()

	mock.ExpectSet("campus:alice:fdutools/bus.json", []byte(`{}`), time.Hour).SetVal("OK")
	mock.ExpectGet("campus:alice:fdutools/bus.json").SetVal(`{}`)

	require.NoError(t, s.Save(ctx, "fdutools/bus.json", []byte(`{}`)))
	got, err := s.Load(ctx, "fdutools/bus.json")
	require.NoError(t, err)
	require.Equal(t, `{}`, string(got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadMissing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, "p")

	mock.ExpectGet("p:nope").RedisNil()

	_, err := s.Load(context.Background(), "nope")
	require.ErrorIs(t, err, persist.ErrNotFound)
}

func TestStore_LoadError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, "p")

	mock.ExpectGet("p:k").SetErr(errors.New("conn reset"))

	_, err := s.Load(context.Background(), "k")
	require.Error(t, err)
	require.NotErrorIs(t, err, persist.ErrNotFound)
	require.NotErrorIs(t, err, redis.Nil)
}

func TestStore_RemovePrefix_Paginates(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, "p")

	mock.ExpectScan(0, "p:fdutools/*", scanBatch).SetVal([]string{"p:fdutools/a", "p:fdutools/b"}, 7)
	mock.ExpectDel("p:fdutools/a", "p:fdutools/b").SetVal(2)
	mock.ExpectScan(7, "p:fdutools/*", scanBatch).SetVal([]string{}, 0)

	require.NoError(t, s.RemovePrefix(context.Background(), "fdutools/"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Remove(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, "")

	mock.ExpectDel("k").SetVal(1)
	require.NoError(t, s.Remove(context.Background(), "k"))
	require.NoError(t, mock.ExpectationsWereMet())
}
