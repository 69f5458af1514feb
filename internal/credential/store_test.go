package credential

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/campus-kit/internal/model"
)

func TestMemory_SetGetClear(t *testing.T) {
	t.Parallel()
	m := NewMemory()

	_, ok := m.Get()
	require.False(t, ok)

	c := model.Credential{AccessToken: "a1", RefreshToken: "r1"}
	require.NoError(t, m.Set(c))
	got, ok := m.Get()
	require.True(t, ok)
	require.Equal(t, c, got)

	require.NoError(t, m.Clear())
	_, ok = m.Get()
	require.False(t, ok)
	require.NoError(t, m.Clear())
}

func TestMemory_CompareAndSwap(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	a := model.Credential{AccessToken: "a1", RefreshToken: "r1"}
	b := model.Credential{AccessToken: "a2", RefreshToken: "r2"}

	ok, err := m.CompareAndSwap(a, b)
	require.NoError(t, err)
	require.False(t, ok, "empty store must not swap")

	require.NoError(t, m.Set(a))
	ok, err = m.CompareAndSwap(b, a)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = m.CompareAndSwap(a, b)
	require.NoError(t, err)
	require.True(t, ok)
	got, _ := m.Get()
	require.Equal(t, b, got)
}

func TestMemory_ConcurrentSwapsHaveOneWinner(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	a := model.Credential{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, m.Set(a))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := model.Credential{AccessToken: "n" + string(rune('a'+i)), RefreshToken: "r"}
			ok, _ := m.CompareAndSwap(a, next)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestFile_PlainRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app", "credential.json")
	f, err := OpenFile(path, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	_, ok := f.Get()
	require.False(t, ok)

	c := model.Credential{AccessToken: "a1", RefreshToken: "r1"}
	require.NoError(t, f.Set(c))

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	again, err := OpenFile(path)
	require.NoError(t, err)
	got, ok := again.Get()
	require.True(t, ok)
	require.Equal(t, c, got)

	require.NoError(t, again.Clear())
	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFile_SealedRoundtripAndWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	f, err := OpenFile(path, WithPassphrase("correct horse"))
	require.NoError(t, err)
	c := model.Credential{AccessToken: "secret-access", RefreshToken: "secret-refresh"}
	require.NoError(t, f.Set(c))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "secret-access")

	same, err := OpenFile(path, WithPassphrase("correct horse"))
	require.NoError(t, err)
	got, ok := same.Get()
	require.True(t, ok)
	require.Equal(t, c, got)

	wrong, err := OpenFile(path, WithPassphrase("battery staple"), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	_, ok = wrong.Get()
	require.False(t, ok, "undecryptable file counts as logged out")
}

func TestFile_CorruptFileIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	f, err := OpenFile(path, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	_, ok := f.Get()
	require.False(t, ok)
}

func TestFile_CompareAndSwapPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	f, err := OpenFile(path)
	require.NoError(t, err)
	a := model.Credential{AccessToken: "a1", RefreshToken: "r1"}
	b := model.Credential{AccessToken: "a2", RefreshToken: "r2"}
	require.NoError(t, f.Set(a))

	ok, err := f.CompareAndSwap(a, b)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.Clear())
	ok, err = f.CompareAndSwap(b, a)
	require.NoError(t, err)
	require.False(t, ok, "swap after logout must not resurrect the session")

	again, err := OpenFile(path)
	require.NoError(t, err)
	_, present := again.Get()
	require.False(t, present)
}

func TestDefaultPath_UsesXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.Equal(t, filepath.Join(dir, "campus", "credential.json"), DefaultPath("campus"))
}
