package multistep

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContainsNone(t *testing.T) {
	for _, c := range []string{"None", "none", "NONE.", "New question: None", "nonetheless"} {
		require.True(t, ContainsNone(c), c)
	}
	for _, c := range []string{"", "Who is X?", "no one"} {
		require.False(t, ContainsNone(c), c)
	}
}

func TestExactNone(t *testing.T) {
	for _, c := range []string{"None", " none ", "NONE.", "\"None\""} {
		require.True(t, ExactNone(c), c)
	}
	for _, c := range []string{"", "nonetheless", "None needed", "Who is X?"} {
		require.False(t, ExactNone(c), c)
	}
}

func TestStopPredicateByName(t *testing.T) {
	require.Equal(t, []string{"contains-none", "exact-none"}, StopPredicateNames())

	p, err := StopPredicateByName("")
	require.NoError(t, err)
	require.True(t, p("nonetheless"))

	p, err = StopPredicateByName(" exact-none ")
	require.NoError(t, err)
	require.False(t, p("nonetheless"))

	_, err = StopPredicateByName("never")
	require.ErrorContains(t, err, "unknown stop predicate: never")
}
