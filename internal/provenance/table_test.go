package provenance

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fragmentOrigin(id string, version, sectionIndex int) Origin {
	return Origin{
		Kind:            OriginFragment,
		FragmentID:      id,
		FragmentVersion: version,
		SectionType:     "identity",
		SectionIndex:    sectionIndex,
	}
}

func TestTableAdd(t *testing.T) {
	t.Run("accepts ordered non-overlapping ranges with gaps", func(t *testing.T) {
		table := NewTable("test")
		require.NoError(t, table.Add(Mapping{Start: 0, End: 10, Line: 1, Column: 1}))
		require.NoError(t, table.Add(Mapping{Start: 12, End: 20, Line: 2, Column: 1}))
		assert.Equal(t, 2, table.Len())
	})

	t.Run("rejects empty range", func(t *testing.T) {
		table := NewTable("test")
		assert.Error(t, table.Add(Mapping{Start: 5, End: 5}))
	})

	t.Run("rejects inverted range", func(t *testing.T) {
		table := NewTable("test")
		assert.Error(t, table.Add(Mapping{Start: 10, End: 4}))
	})

	t.Run("rejects overlap and leaves table unchanged", func(t *testing.T) {
		table := NewTable("test")
		require.NoError(t, table.Add(Mapping{Start: 0, End: 10}))

		err := table.Add(Mapping{Start: 8, End: 15})
		require.Error(t, err)
		assert.Equal(t, 1, table.Len())
	})

	t.Run("adjacent ranges do not overlap", func(t *testing.T) {
		table := NewTable("test")
		require.NoError(t, table.Add(Mapping{Start: 0, End: 10}))
		assert.NoError(t, table.Add(Mapping{Start: 10, End: 20}))
	})
}

func TestOriginAtOffset(t *testing.T) {
	table := NewTable("test")
	require.NoError(t, table.Add(Mapping{Start: 0, End: 5, Origin: fragmentOrigin("greet", 2, 0)}))
	require.NoError(t, table.Add(Mapping{Start: 7, End: 12, Origin: Origin{Kind: OriginLiteral, SectionType: "format", SectionIndex: 1}}))

	tests := []struct {
		name   string
		offset int
		want   string // fragment id, "" for nil or non-fragment
		hit    bool
	}{
		{"start of first range", 0, "greet", true},
		{"inside first range", 4, "greet", true},
		{"end is exclusive", 5, "", false},
		{"gap between mappings", 6, "", false},
		{"second range", 7, "", true},
		{"past the document", 99, "", false},
		{"negative offset", -1, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origin := table.OriginAtOffset(tt.offset)
			if !tt.hit {
				assert.Nil(t, origin)
				return
			}
			require.NotNil(t, origin)
			assert.Equal(t, tt.want, origin.FragmentID)
		})
	}
}

func TestOriginAtLineColumn(t *testing.T) {
	text := "alpha\nbeta\ngamma"
	table := NewTable("test")
	require.NoError(t, table.Add(Mapping{Start: 0, End: 10, Line: 1, Column: 1, Origin: fragmentOrigin("greet", 1, 0)}))
	require.NoError(t, table.Add(Mapping{Start: 11, End: 16, Line: 3, Column: 1, Origin: Origin{Kind: OriginLiteral, SectionType: "format", SectionIndex: 1}}))

	origin := table.OriginAt(text, 2, 1)
	require.NotNil(t, origin)
	assert.Equal(t, "greet", origin.FragmentID)

	origin = table.OriginAt(text, 3, 2)
	require.NotNil(t, origin)
	assert.Equal(t, OriginLiteral, origin.Kind)

	assert.Nil(t, table.OriginAt(text, 9, 1), "nonexistent line")
	assert.Nil(t, table.OriginAt(text, 0, 1), "lines are 1-indexed")
}

func TestPositionsFrom(t *testing.T) {
	table := NewTable("test")
	require.NoError(t, table.Add(Mapping{Start: 0, End: 5, Origin: fragmentOrigin("greet", 1, 0)}))
	require.NoError(t, table.Add(Mapping{Start: 6, End: 10, Origin: Origin{Kind: OriginLiteral, SectionIndex: 1}}))
	require.NoError(t, table.Add(Mapping{Start: 11, End: 16, Origin: fragmentOrigin("greet", 1, 2)}))

	got := table.PositionsFrom("greet")
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Start)
	assert.Equal(t, 11, got[1].Start)

	assert.Empty(t, table.PositionsFrom("missing"))
}

func TestVisualize(t *testing.T) {
	text := "alpha\nbeta\ngamma"
	table := NewTable("test")
	require.NoError(t, table.Add(Mapping{Start: 0, End: 10, Origin: fragmentOrigin("greet", 2, 0)}))
	require.NoError(t, table.Add(Mapping{Start: 11, End: 16, Origin: Origin{Kind: OriginLiteral, SectionType: "format", SectionIndex: 1}}))

	out := table.Visualize(text)
	assert.Contains(t, out, "Lines 1-2:   fragment greet@v2 (identity section)")
	assert.Contains(t, out, "Line 3:      literal format section")
}

func TestVisualizeEmpty(t *testing.T) {
	assert.Empty(t, NewTable("test").Visualize("some text"))
	assert.Empty(t, NewTable("test").Visualize(""))
}

func TestRecordRoundTrip(t *testing.T) {
	table := NewTable("demo/abc123")
	require.NoError(t, table.Add(Mapping{Start: 0, End: 5, Line: 1, Column: 1, Origin: fragmentOrigin("greet", 3, 0)}))
	require.NoError(t, table.Add(Mapping{Start: 7, End: 12, Line: 2, Column: 1, Origin: Origin{Kind: OriginDynamic, SectionType: "context", SectionIndex: 1, Key: "ticket"}}))

	rebuilt := FromRecord(table.ToRecord())

	assert.Equal(t, table.Subject(), rebuilt.Subject())
	if diff := cmp.Diff(table.Mappings(), rebuilt.Mappings()); diff != "" {
		t.Errorf("mappings mismatch after round trip (-want +got):\n%s", diff)
	}
}

func TestLineColumnAt(t *testing.T) {
	text := "ab\ncd\n\nef"
	tests := []struct {
		offset int
		line   int
		column int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{2, 1, 3}, // the newline itself
		{3, 2, 1},
		{6, 3, 1},
		{7, 4, 1},
		{8, 4, 2},
	}
	for _, tt := range tests {
		line, column := LineColumnAt(text, tt.offset)
		assert.Equal(t, tt.line, line, "offset %d line", tt.offset)
		assert.Equal(t, tt.column, column, "offset %d column", tt.offset)
	}
}

func TestOriginDescribe(t *testing.T) {
	tests := []struct {
		name   string
		origin Origin
		want   string
	}{
		{
			"fragment with file",
			Origin{Kind: OriginFragment, FragmentID: "greet", FragmentVersion: 2, SectionType: "identity", File: "frags/greet.md", FileLine: 4},
			"fragment greet@v2 (identity section) [frags/greet.md:4]",
		},
		{
			"dynamic with key",
			Origin{Kind: OriginDynamic, SectionType: "context", Key: "ticket"},
			"dynamic context section (key ticket)",
		},
		{
			"literal",
			Origin{Kind: OriginLiteral, SectionType: "format"},
			"literal format section",
		},
		{
			"generated decoration",
			Origin{Kind: OriginGenerated},
			"generated decoration",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.origin.Describe())
		})
	}
}
