package reports

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizerStripsScripts(t *testing.T) {
	s := NewHTMLSanitizer()

	require.Equal(t, "hello", s.Sanitize(`<script>alert(1)</script>hello`))
	require.Equal(t, "<p>fine</p>", s.Sanitize(`<p onclick="evil()">fine</p>`))
	require.Equal(t, "<strong>done</strong>", s.Sanitize("<strong>done</strong>"))
}

func TestSanitizerAllowsRichTextSubset(t *testing.T) {
	s := NewHTMLSanitizer()

	in := "<ul><li>shipped importer</li><li>fixed <em>flaky</em> test</li></ul>"
	require.Equal(t, in, s.Sanitize(in))
}

func TestSanitizeContentCoversAllFields(t *testing.T) {
	c := Content{
		Accomplishments: "<script>x</script>a",
		GoalsNextWeek:   "<script>x</script>b",
		Blockers:        "<script>x</script>c",
		SupportNeeded:   "<script>x</script>d",
		AdditionalNotes: "<script>x</script>e",
	}
	out := sanitizeContent(NewHTMLSanitizer(), c)
	require.Equal(t, "a", out.Accomplishments)
	require.Equal(t, "b", out.GoalsNextWeek)
	require.Equal(t, "c", out.Blockers)
	require.Equal(t, "d", out.SupportNeeded)
	require.Equal(t, "e", out.AdditionalNotes)
}
