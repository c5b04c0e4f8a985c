package transaction

import (
	"errors"
	"fmt"

	"hull/pkg/ident"
)

// ErrPartialApply is returned when a previous plan failed mid-apply and
// its undo chain failed too. The staging directory of the broken plan is
// kept for the operator; nothing runs until it is resolved.
var ErrPartialApply = errors.New("a previous operation was partially applied; resolve it before continuing")

// CorruptArchiveError reports a staged archive whose content hash does
// not match the cache's record.
type CorruptArchiveError struct {
	Pkg      ident.ID
	Expected string
	Actual   string
}

func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("corrupt archive for %s: expected sha256 %s, got %s", e.Pkg, e.Expected, e.Actual)
}

// FileConflictError reports a path claimed by two distinct packages.
type FileConflictError struct {
	Path string
	A    ident.ID
	B    ident.ID
}

func (e *FileConflictError) Error() string {
	return fmt.Sprintf("file conflict on %s between %s and %s", e.Path, e.A, e.B)
}

// UntrackedFileError reports that applying the plan would overwrite a
// file no installed package owns, placed there by the user or by tools
// outside this package manager.
type UntrackedFileError struct {
	Path string
	Pkg  ident.ID
}

func (e *UntrackedFileError) Error() string {
	return fmt.Sprintf("installing %s would overwrite untracked file %s", e.Pkg, e.Path)
}

// ArchiveUnavailableError reports that reverse cannot proceed because an
// archive it would need to re-install is neither cached nor retrievable.
type ArchiveUnavailableError struct {
	Pkg ident.ID
	Err error
}

func (e *ArchiveUnavailableError) Error() string {
	return fmt.Sprintf("archive for %s is unavailable: %v", e.Pkg, e.Err)
}

func (e *ArchiveUnavailableError) Unwrap() error {
	return e.Err
}
