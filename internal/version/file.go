package version

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/spf13/afero"
)

var (
	// ErrVersionFileNotFound indicates the version file path does not exist.
	ErrVersionFileNotFound = errors.New("version file not found")

	// ErrVersionPatternNotFound indicates the version file has no constant assignment.
	ErrVersionPatternNotFound = errors.New("version assignment not found in version file")
)

// DefaultConstant is the constant gems declare their version in.
const DefaultConstant = "VERSION"

func assignmentPattern(constant string) *regexp.Regexp {
	if constant == "" {
		constant = DefaultConstant
	}
	return regexp.MustCompile(`(?m)^(\s*` + regexp.QuoteMeta(constant) + `\s*=\s*)(["'])([^"'\r\n]+)(["'])`)
}

// Find returns the version assigned to constant in content.
func Find(content, constant string) (Version, error) {
	m := assignmentPattern(constant).FindStringSubmatch(content)
	if m == nil {
		return Version{}, errs.Configuration(fmt.Errorf("%w: expected a line like %s = \"1.2.3\"", ErrVersionPatternNotFound, constantOrDefault(constant)))
	}
	return Parse(m[3])
}

// Rewrite replaces the version on the first assignment line and leaves the
// rest of the content, including trailing code such as .freeze, untouched.
func Rewrite(content, constant string, v Version) (string, error) {
	re := assignmentPattern(constant)
	loc := re.FindStringSubmatchIndex(content)
	if loc == nil {
		return "", errs.Configuration(fmt.Errorf("%w: expected a line like %s = \"1.2.3\"", ErrVersionPatternNotFound, constantOrDefault(constant)))
	}
	// loc[6]:loc[7] is the quoted version group.
	return content[:loc[6]] + v.String() + content[loc[7]:], nil
}

// ReadFile loads the version declared in the file at path.
func ReadFile(fs afero.Fs, path, constant string) (Version, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Version{}, errs.Configuration(fmt.Errorf("%w: %s", ErrVersionFileNotFound, path))
		}
		return Version{}, fmt.Errorf("reading version file %s: %w", path, err)
	}

	v, err := Find(string(data), constant)
	if err != nil {
		return Version{}, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// WriteFile rewrites the version line of the file at path and returns the new content.
func WriteFile(fs afero.Fs, path, constant string, v Version) ([]byte, error) {
	info, err := fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Configuration(fmt.Errorf("%w: %s", ErrVersionFileNotFound, path))
		}
		return nil, fmt.Errorf("reading version file %s: %w", path, err)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading version file %s: %w", path, err)
	}

	updated, err := Rewrite(string(data), constant, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := afero.WriteFile(fs, path, []byte(updated), info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("writing version file %s: %w", path, err)
	}
	return []byte(updated), nil
}

func constantOrDefault(constant string) string {
	if constant == "" {
		return DefaultConstant
	}
	return constant
}
