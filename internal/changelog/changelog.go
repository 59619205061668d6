// Package changelog turns generated release notes into CHANGELOG.md entries
// and inserts them newest-first without ever duplicating a version.
package changelog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/version"
	"github.com/spf13/afero"
)

var (
	// ErrChangelogMissing indicates the changelog file does not exist. It is never created.
	ErrChangelogMissing = errors.New("changelog file not found")

	// ErrEntryNotFound indicates the changelog has no entry for a version.
	ErrEntryNotFound = errors.New("changelog entry not found")
)

// DefaultPath is where gems keep their changelog.
const DefaultPath = "CHANGELOG.md"

// entryLevel is the heading level of a version entry ("## 1.2.3 (2024-05-01)").
const entryLevel = 2

const dateLayout = "2006-01-02"

// releasedPattern matches a released version's heading, as opposed to
// "## [Unreleased]" and other level two sections kept above the entries.
var (
	headingPattern  = regexp.MustCompile(`^(#{1,6})(\s+.*)$`)
	entryPattern    = regexp.MustCompile(`^##\s+\[?v?([^\s\]]+)\]?(?:\s|$)`)
	releasedPattern = regexp.MustCompile(`^##\s+\[?v?\d+\.\d+`)
	datePattern     = regexp.MustCompile(`\((\d{4}-\d{2}-\d{2})\)`)
)

// NotesSource produces release notes for a tag from the hosting service.
type NotesSource interface {
	GenerateReleaseNotes(ctx context.Context, repository, tag, target, previousTag string) (string, error)
}

// Entry is one released version in the changelog.
type Entry struct {
	Version version.Version
	Date    time.Time
	Body    string
}

// Heading is the entry's first line.
func (e Entry) Heading() string {
	return fmt.Sprintf("## %s (%s)", e.Version, e.Date.Format(dateLayout))
}

// Markdown renders the entry as it is stored in the changelog.
func (e Entry) Markdown() string {
	if e.Body == "" {
		return e.Heading() + "\n"
	}
	return e.Heading() + "\n\n" + e.Body + "\n"
}

// BuildEntry wraps generated notes in an entry for v. The notes are kept as
// they are apart from line endings and headings, which are pushed below the
// entry heading so the changelog outline stays intact.
func BuildEntry(v version.Version, notes string, date time.Time) Entry {
	return Entry{
		Version: v,
		Date:    date.UTC(),
		Body:    normalizeNotes(notes),
	}
}

func normalizeNotes(notes string) string {
	notes = strings.ReplaceAll(notes, "\r\n", "\n")
	lines := strings.Split(notes, "\n")

	shallowest := 0
	for _, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			if shallowest == 0 || len(m[1]) < shallowest {
				shallowest = len(m[1])
			}
		}
	}

	if shift := entryLevel + 1 - shallowest; shallowest > 0 && shift > 0 {
		for i, line := range lines {
			if m := headingPattern.FindStringSubmatch(line); m != nil {
				level := len(m[1]) + shift
				if level > 6 {
					level = 6
				}
				lines[i] = strings.Repeat("#", level) + m[2]
			}
		}
	}

	return strings.Trim(strings.Join(lines, "\n"), "\n ")
}

// Contains reports whether content already has an entry for v.
func Contains(content string, v version.Version) bool {
	_, _, ok := findEntry(content, v)
	return ok
}

// findEntry returns the line range [start, end) of the entry for v.
func findEntry(content string, v version.Version) (int, int, bool) {
	lines := strings.Split(content, "\n")
	start := -1
	for i, line := range lines {
		m := entryPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if start >= 0 {
			return start, i, true
		}
		if parsed, err := version.Parse(m[1]); err == nil && parsed == v {
			start = i
		}
	}
	if start >= 0 {
		return start, len(lines), true
	}
	return 0, 0, false
}

// Insert places entry before the newest released version, below the title
// and any preamble or unreleased section. It reports false and returns content
// unchanged when an entry for the same version is already there. The file's
// line endings are kept.
func Insert(content string, entry Entry) (string, bool) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if Contains(normalized, entry.Version) {
		return content, false
	}

	updated := insert(normalized, entry)
	if strings.Contains(content, "\r\n") {
		updated = strings.ReplaceAll(updated, "\n", "\r\n")
	}
	return updated, true
}

func insert(content string, entry Entry) string {
	lines := strings.Split(content, "\n")
	at := -1
	for i, line := range lines {
		if releasedPattern.MatchString(line) {
			at = i
			break
		}
	}

	if at < 0 {
		head := strings.TrimRight(content, "\n")
		if head == "" {
			return entry.Markdown()
		}
		return head + "\n\n" + entry.Markdown()
	}

	tail := strings.Join(lines[at:], "\n")
	head := strings.TrimRight(strings.Join(lines[:at], "\n"), "\n")
	if head == "" {
		return entry.Markdown() + "\n" + tail
	}
	return head + "\n\n" + entry.Markdown() + "\n" + tail
}

// Prepend inserts entry into the changelog file at path. The returned bool is
// false when the entry was already present and nothing was written.
func Prepend(fs afero.Fs, path string, entry Entry) (bool, error) {
	info, err := fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, errs.Configuration(fmt.Errorf("%w: %s (create it with a \"# Changelog\" title)", ErrChangelogMissing, path))
		}
		return false, fmt.Errorf("reading changelog %s: %w", path, err)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return false, fmt.Errorf("reading changelog %s: %w", path, err)
	}

	updated, changed := Insert(string(data), entry)
	if !changed {
		return false, nil
	}

	if err := afero.WriteFile(fs, path, []byte(updated), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("writing changelog %s: %w", path, err)
	}
	return true, nil
}

// Extract reads the entry for v back out of content.
func Extract(content string, v version.Version) (Entry, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	start, end, ok := findEntry(content, v)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, v)
	}

	lines := strings.Split(content, "\n")
	entry := Entry{Version: v}
	if m := datePattern.FindStringSubmatch(lines[start]); m != nil {
		if d, err := time.Parse(dateLayout, m[1]); err == nil {
			entry.Date = d
		}
	}
	entry.Body = strings.Trim(strings.Join(lines[start+1:end], "\n"), "\n ")
	return entry, nil
}
