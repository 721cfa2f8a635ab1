package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const detailPage = `
<html><body>
<dl>
  <div><dt>Program</dt><dd>Computer Science</dd></div>
  <div><dt>Degree Type</dt><dd>PhD</dd></div>
  <div><dt>Notes</dt><dd>  Funded offer,   very happy </dd></div>
  <div><dt>Undergrad GPA</dt><dd>3.75</dd></div>
</dl>
<div>
  <span>GRE General:</span><span>321</span>
  <span>GRE Verbal:</span><span>160</span>
  <span>Analytical Writing:</span><span>4.5</span>
</div>
</body></html>`

func TestDetailParser_Parse(t *testing.T) {
	t.Parallel()

	p := NewDetailParser()
	fields, err := p.Parse(detailPage)
	require.NoError(t, err)

	require.Equal(t, "Computer Science", fields.Program)
	require.Equal(t, "PhD", fields.DegreeType)
	require.Equal(t, "Funded offer, very happy", fields.Notes)
	require.Equal(t, "3.75", fields.GPA)
	require.Equal(t, "321", fields.GREGeneral)
	require.Equal(t, "160", fields.GREVerbal)
	require.Equal(t, "4.5", fields.GREWriting)
}

func TestDetailParser_PlaceholdersMeanNotReported(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"0":     "",
		"0.0":   "",
		"0.00":  "",
		"99.99": "",
		"3.75":  "3.75",
	}
	for raw, want := range cases {
		page := `<dl><div><dt>Undergrad GPA</dt><dd>` + raw + `</dd></div></dl>`
		fields, err := NewDetailParser().Parse(page)
		require.NoError(t, err)
		require.Equal(t, want, fields.GPA, "placeholder %q", raw)
	}
}

func TestDetailParser_TrailingLabelWithoutValueLeftUnset(t *testing.T) {
	t.Parallel()

	page := `<div><span>GRE General:</span><span>321</span><span>GRE Verbal:</span></div>`
	fields, err := NewDetailParser().Parse(page)
	require.NoError(t, err)
	require.Equal(t, "321", fields.GREGeneral)
	require.Empty(t, fields.GREVerbal)
}

func TestDetailParser_MissingFieldsAreEmptyNotErrors(t *testing.T) {
	t.Parallel()

	fields, err := NewDetailParser().Parse(`<html><body><p>nothing here</p></body></html>`)
	require.NoError(t, err)
	require.Equal(t, "", fields.Program)
	require.Equal(t, "", fields.Notes)
	require.Equal(t, "", fields.GREGeneral)
}
