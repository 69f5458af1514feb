package model

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestCredential_AccessExpiry(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
	signed, err := tok.SignedString([]byte("k"))
	require.NoError(t, err)

	got, ok := Credential{AccessToken: signed}.AccessExpiry()
	require.True(t, ok)
	require.True(t, exp.Equal(got))

	// expired tokens still report their expiry
	old := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp.Add(-2 * time.Hour))})
	signed, err = old.SignedString([]byte("k"))
	require.NoError(t, err)
	_, ok = Credential{AccessToken: signed}.AccessExpiry()
	require.True(t, ok)

	_, ok = Credential{AccessToken: "opaque"}.AccessExpiry()
	require.False(t, ok)
}

func TestCredential_IsZero(t *testing.T) {
	t.Parallel()
	require.True(t, Credential{}.IsZero())
	require.True(t, Credential{RefreshToken: "r"}.IsZero())
	require.False(t, Credential{AccessToken: "a"}.IsZero())
}

func TestSemesterList_Find(t *testing.T) {
	t.Parallel()
	l := SemesterList{Semesters: []Semester{{Year: 2023, Term: "2"}, {Year: 2024, Term: "1", WeekCount: 18}}}

	s, ok := l.Find("2024-1")
	require.True(t, ok)
	require.Equal(t, 18, s.WeekCount)

	_, ok = l.Find("2025-1")
	require.False(t, ok)
}
