package cmd

import (
	"errors"

	"github.com/danielolaszy/gemcut/internal/changelog"
	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/publish"
	"github.com/danielolaszy/gemcut/internal/version"
)

// Exit codes reported by the CLI.
const (
	ExitOK = iota
	ExitUnknown
	ExitConfiguration
	ExitFileNotFound
	ExitPatternNotFound
	ExitStateConflict
	ExitPublishFailed
	ExitReleaseCreationFailed
	ExitValidation
	ExitExternalService
)

// ExitCode maps an error returned by Execute to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, version.ErrVersionFileNotFound), errors.Is(err, changelog.ErrChangelogMissing):
		return ExitFileNotFound
	case errors.Is(err, version.ErrVersionPatternNotFound):
		return ExitPatternNotFound
	case errors.Is(err, publish.ErrPublishFailed):
		return ExitPublishFailed
	case errors.Is(err, publish.ErrReleaseCreation):
		return ExitReleaseCreationFailed
	}

	switch errs.KindOf(err) {
	case errs.KindConfiguration:
		return ExitConfiguration
	case errs.KindStateConflict:
		return ExitStateConflict
	case errs.KindValidation:
		return ExitValidation
	case errs.KindExternalService:
		return ExitExternalService
	default:
		return ExitUnknown
	}
}
