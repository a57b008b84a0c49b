package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlan_EmptyQueryWithFilters(t *testing.T) {
	q := Plan("", Filters{FolderPath: "Work"})
	require.NotNil(t, q)
}

func TestPlan_EmptyQueryNoFilters(t *testing.T) {
	q := Plan("", Filters{})
	require.NotNil(t, q)
}

func TestPlan_WordsAndPhrases(t *testing.T) {
	q := Plan(`"React hooks" documentation`, Filters{})
	require.NotNil(t, q)
}

func TestPlan_WithDomainAndFolderFilters(t *testing.T) {
	q := Plan("react", Filters{FolderPath: "Bookmarks Bar/Work", Domain: "example.com"})
	require.NotNil(t, q)
}
