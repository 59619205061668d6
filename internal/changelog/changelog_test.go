package changelog

import (
	"strings"
	"testing"
	"time"

	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/version"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var releaseDay = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

const generatedNotes = "## What's Changed\r\n* Fix picture cropping by @tvdeyen in https://github.com/AlchemyCMS/alchemy_cms/pull/3100\r\n\r\n**Full Changelog**: https://github.com/AlchemyCMS/alchemy_cms/compare/v7.4.1...v7.4.2\r\n"

const existingChangelog = `# Changelog

## 7.4.1 (2025-02-01)

- Fix admin locale switch

## 7.4.0 (2025-01-10)

- Add picture descriptions
`

func TestBuildEntry(t *testing.T) {
	entry := BuildEntry(version.MustParse("7.4.2"), generatedNotes, releaseDay)

	assert.Equal(t, "## 7.4.2 (2025-03-14)", entry.Heading())
	assert.True(t, strings.HasPrefix(entry.Body, "### What's Changed\n"), "heading demoted below entry level: %q", entry.Body)
	assert.NotContains(t, entry.Body, "\r")
	assert.Contains(t, entry.Body, "**Full Changelog**")
	assert.False(t, strings.HasSuffix(entry.Body, "\n"))
}

func TestBuildEntryKeepsDeepHeadings(t *testing.T) {
	entry := BuildEntry(version.MustParse("1.0.0"), "### Features\n- one\n#### Details\n", releaseDay)
	assert.Equal(t, "### Features\n- one\n#### Details", entry.Body)

	entry = BuildEntry(version.MustParse("1.0.0"), "# Title\n## Sub\n", releaseDay)
	assert.Equal(t, "### Title\n#### Sub", entry.Body)
}

func TestInsert(t *testing.T) {
	entry := BuildEntry(version.MustParse("7.4.2"), "- Fix picture cropping", releaseDay)

	out, changed := Insert(existingChangelog, entry)
	require.True(t, changed)

	want := `# Changelog

## 7.4.2 (2025-03-14)

- Fix picture cropping

## 7.4.1 (2025-02-01)

- Fix admin locale switch

## 7.4.0 (2025-01-10)

- Add picture descriptions
`
	assert.Equal(t, want, out)
}

func TestInsertIsIdempotent(t *testing.T) {
	entry := BuildEntry(version.MustParse("7.4.2"), "- Fix picture cropping", releaseDay)

	once, changed := Insert(existingChangelog, entry)
	require.True(t, changed)

	twice, changed := Insert(once, entry)
	assert.False(t, changed)
	assert.Equal(t, once, twice)
	assert.Equal(t, 1, strings.Count(twice, "## 7.4.2 "))
}

func TestInsertEdgeLayouts(t *testing.T) {
	entry := BuildEntry(version.MustParse("0.1.0"), "- First release", releaseDay)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "title only",
			content: "# Changelog\n",
			want:    "# Changelog\n\n## 0.1.0 (2025-03-14)\n\n- First release\n",
		},
		{
			name:    "title with preamble",
			content: "# Changelog\n\nAll notable changes.\n\n## 0.0.9 (2025-01-01)\n\n- Beta\n",
			want:    "# Changelog\n\nAll notable changes.\n\n## 0.1.0 (2025-03-14)\n\n- First release\n\n## 0.0.9 (2025-01-01)\n\n- Beta\n",
		},
		{
			name:    "unreleased section stays on top",
			content: "# Changelog\n\n## [Unreleased]\n\n- Pending\n\n## 0.0.9 (2025-01-01)\n\n- Beta\n",
			want:    "# Changelog\n\n## [Unreleased]\n\n- Pending\n\n## 0.1.0 (2025-03-14)\n\n- First release\n\n## 0.0.9 (2025-01-01)\n\n- Beta\n",
		},
		{
			name:    "unreleased section only",
			content: "# Changelog\n\n## [Unreleased]\n",
			want:    "# Changelog\n\n## [Unreleased]\n\n## 0.1.0 (2025-03-14)\n\n- First release\n",
		},
		{
			name:    "bracketed released versions",
			content: "# Changelog\n\n## [0.0.9] - 2025-01-01\n\n- Beta\n",
			want:    "# Changelog\n\n## 0.1.0 (2025-03-14)\n\n- First release\n\n## [0.0.9] - 2025-01-01\n\n- Beta\n",
		},
		{
			name:    "no title",
			content: "## 0.0.9 (2025-01-01)\n\n- Beta\n",
			want:    "## 0.1.0 (2025-03-14)\n\n- First release\n\n## 0.0.9 (2025-01-01)\n\n- Beta\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed := Insert(tt.content, entry)
			require.True(t, changed)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestInsertKeepsLineEndings(t *testing.T) {
	crlf := strings.ReplaceAll(existingChangelog, "\n", "\r\n")
	entry := BuildEntry(version.MustParse("7.4.2"), "- Fix picture cropping\r\n- Fix uploads", releaseDay)

	out, changed := Insert(crlf, entry)
	require.True(t, changed)
	assert.Equal(t, strings.Count(out, "\n"), strings.Count(out, "\r\n"), "every line ends in CRLF")
	assert.True(t, strings.HasSuffix(out, crlf[len("# Changelog\r\n\r\n"):]), "existing entries untouched")
	assert.Contains(t, out, "## 7.4.2 (2025-03-14)\r\n\r\n- Fix picture cropping\r\n- Fix uploads\r\n\r\n## 7.4.1")

	again, changed := Insert(out, entry)
	assert.False(t, changed)
	assert.Equal(t, out, again)

	lf, changed := Insert(existingChangelog, entry)
	require.True(t, changed)
	assert.NotContains(t, lf, "\r")
}

func TestContainsBracketedVersion(t *testing.T) {
	content := "# Changelog\n\n## [Unreleased]\n\n## [7.4.1] - 2025-02-01\n\n- Fix\n"
	assert.True(t, Contains(content, version.MustParse("7.4.1")))
	assert.False(t, Contains(content, version.MustParse("7.4.2")))
}

func TestPrepend(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, DefaultPath, []byte(existingChangelog), 0o644))
	entry := BuildEntry(version.MustParse("7.4.2"), generatedNotes, releaseDay)

	changed, err := Prepend(fs, DefaultPath, entry)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = Prepend(fs, DefaultPath, entry)
	require.NoError(t, err)
	assert.False(t, changed)

	data, err := afero.ReadFile(fs, DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "## 7.4.2 (2025-03-14)"))
}

func TestPrependMissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	entry := BuildEntry(version.MustParse("1.0.0"), "", releaseDay)

	_, err := Prepend(fs, DefaultPath, entry)
	require.ErrorIs(t, err, ErrChangelogMissing)
	assert.Equal(t, errs.KindConfiguration, errs.KindOf(err))
	assert.Contains(t, err.Error(), DefaultPath)

	exists, err := afero.Exists(fs, DefaultPath)
	require.NoError(t, err)
	assert.False(t, exists, "changelog must not be created")
}

func TestExtract(t *testing.T) {
	entry, err := Extract(existingChangelog, version.MustParse("7.4.1"))
	require.NoError(t, err)
	assert.Equal(t, "- Fix admin locale switch", entry.Body)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), entry.Date)

	last, err := Extract(existingChangelog, version.MustParse("7.4.0"))
	require.NoError(t, err)
	assert.Equal(t, "- Add picture descriptions", last.Body)

	_, err = Extract(existingChangelog, version.MustParse("9.9.9"))
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestExtractThenInsertRoundTrip(t *testing.T) {
	full := BuildEntry(version.MustParse("7.4.2"), generatedNotes, releaseDay)
	stable, _ := Insert(existingChangelog, full)

	extracted, err := Extract(stable, full.Version)
	require.NoError(t, err)
	assert.Equal(t, full.Body, extracted.Body)

	main, changed := Insert("# Changelog\n\n## 8.0.0 (2025-03-01)\n\n- Big release\n", extracted)
	require.True(t, changed)
	assert.True(t, Contains(main, full.Version))
	assert.True(t, Contains(main, version.MustParse("8.0.0")))
}
