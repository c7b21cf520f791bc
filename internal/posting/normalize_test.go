package posting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func complete(board, name, advt, date string) Posting {
	return Posting{
		PostDate:      date,
		PostBoard:     board,
		PostName:      name,
		Qualification: "Graduate",
		AdvtNo:        advt,
		LastDate:      "31/12/2030",
		Link:          "https://example.com/" + board + "/" + advt,
	}
}

func TestNormalizeDropsIncomplete(t *testing.T) {
	t.Parallel()

	missingAdvt := complete("SSC", "CGL", "", "01/01/2024")
	in := []Posting{complete("UPSC", "CSE", "05/2024", "02/01/2024"), missingAdvt}

	out := Normalize(ShapeTopic, in)
	require.Len(t, out, 1)
	require.Equal(t, "UPSC", out[0].PostBoard)
	for _, p := range out {
		require.NotEmpty(t, p.PostBoard)
		require.NotEmpty(t, p.PostName)
		require.NotEmpty(t, p.AdvtNo)
		require.NotEmpty(t, p.Link)
	}
}

func TestNormalizeKeepsFirstDuplicate(t *testing.T) {
	t.Parallel()

	first := complete("RRB", "NTPC", "01/2024", "10/01/2024")
	first.Qualification = "first"
	dup := complete("RRB", "NTPC", "01/2024", "12/01/2024")
	dup.Qualification = "second"
	other := complete("RRB", "Group D", "02/2024", "11/01/2024")

	out := Normalize(ShapeTopic, []Posting{first, other, dup})
	require.Len(t, out, 2)

	byID := map[Identity]Posting{}
	for _, p := range out {
		_, exists := byID[p.Identity()]
		require.False(t, exists)
		byID[p.Identity()] = p
	}
	require.Equal(t, "first", byID[first.Identity()].Qualification)
}

func TestNormalizeOrdersByPostDateDescending(t *testing.T) {
	t.Parallel()

	in := []Posting{
		complete("A", "a", "1", "01/02/2024"),
		complete("B", "b", "2", "15/03/2024"),
		complete("C", "c", "3", "28/12/2023"),
		complete("D", "d", "4", "15/03/2024"),
	}
	out := Normalize(ShapeTopic, in)
	require.Len(t, out, 4)
	for i := 1; i < len(out); i++ {
		prev, err := ParseDate(out[i-1].PostDate)
		require.NoError(t, err)
		cur, err := ParseDate(out[i].PostDate)
		require.NoError(t, err)
		require.False(t, cur.After(prev))
	}
	// equal dates keep input order
	require.Equal(t, "B", out[0].PostBoard)
	require.Equal(t, "D", out[1].PostBoard)
}

func TestSortByPostDatePutsUndatedLast(t *testing.T) {
	t.Parallel()

	in := []Posting{
		{PostBoard: "x", PostDate: "soon"},
		{PostBoard: "y", PostDate: "01/01/2024"},
		{PostBoard: "z", PostDate: ""},
	}
	SortByPostDate(in)
	require.Equal(t, []string{"y", "x", "z"}, []string{in[0].PostBoard, in[1].PostBoard, in[2].PostBoard})
}

func TestEducationShapeRequiredFields(t *testing.T) {
	t.Parallel()

	p := Posting{PostDate: "01/01/2024", PostBoard: "Admit Card", PostName: "Exam admit card", Link: "https://e/x"}
	require.True(t, ShapeEducation.Complete(p))
	require.False(t, ShapeTopic.Complete(p))
	p.Link = ""
	require.False(t, ShapeEducation.Complete(p))
}

func TestParseShape(t *testing.T) {
	t.Parallel()

	shape, err := ParseShape(" Sectioned ")
	require.NoError(t, err)
	require.Equal(t, ShapeSectioned, shape)
	_, err = ParseShape("grid")
	require.Error(t, err)
}

func TestNotificationSettingsDefaults(t *testing.T) {
	t.Parallel()

	off := false
	var s NotificationSettings
	require.True(t, s.EmailEnabled())
	require.True(t, s.PushEnabled())
	s.Email = &off
	require.False(t, s.EmailEnabled())
	require.True(t, s.PushEnabled())
}
