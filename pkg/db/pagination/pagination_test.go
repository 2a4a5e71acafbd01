package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", StartDate: "2024-03-16"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	require.Equal(t, "42", cursor.ID)
	require.Equal(t, "2024-03-16", cursor.StartDate)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	require.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestBuildCursorPageInfo(t *testing.T) {
	rows := []int{1, 2, 3}
	page, info := BuildCursorPageInfo(rows, 2, func(v int) string { return "tok" })
	require.Equal(t, []int{1, 2}, page)
	require.True(t, info.HasMore)
	require.Equal(t, "tok", info.NextPageToken)

	page, info = BuildCursorPageInfo(rows, 5, func(v int) string { return "tok" })
	require.Len(t, page, 3)
	require.False(t, info.HasMore)
	require.Empty(t, info.NextPageToken)
}

func TestLimitClamp(t *testing.T) {
	require.Equal(t, DefaultPageSize, Pagination{}.Limit())
	require.Equal(t, MaxPageSize, Pagination{PageSize: 10_000}.Limit())
	require.Equal(t, 3, Pagination{PageSize: 3}.Limit())
}
