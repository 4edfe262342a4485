package analyzer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dhamidi/bundlegen/classfile"
	"github.com/dhamidi/bundlegen/version"
)

// ErrInvalidClassFile is wrapped by every ClassError caused by a broken
// class file.
var ErrInvalidClassFile = classfile.ErrInvalidClassFile

// ErrDefaultPackage is matched by DefaultPackageError.
var ErrDefaultPackage = errors.New("reference to the default package")

// ClassError is a problem with one class resource. The analysis skips the
// class and continues.
type ClassError struct {
	Path string
	Err  error
}

func (e *ClassError) Error() string {
	return fmt.Sprintf("invalid class file %s: %v", e.Path, e.Err)
}

func (e *ClassError) Unwrap() error { return e.Err }

// PathMismatchError reports a class stored under a path that does not match
// its declared name.
type PathMismatchError struct {
	Path      string
	ClassName string
}

func (e *PathMismatchError) Error() string {
	return fmt.Sprintf("class %s found in the wrong directory: %s", e.ClassName, e.Path)
}

// DefaultPackageError reports classes referring to the unnamed package,
// which no manifest header can import.
type DefaultPackageError struct {
	Classes []string
}

func (e *DefaultPackageError) Error() string {
	return fmt.Sprintf("classes refer to the default package: %s", strings.Join(e.Classes, ", "))
}

func (e *DefaultPackageError) Is(target error) bool { return target == ErrDefaultPackage }

// UnmatchedError reports an instruction that selected no package.
type UnmatchedError struct {
	Header      string
	Instruction string
}

func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("unused %s instruction: %s", e.Header, e.Instruction)
}

type MalformedVersionError = version.MalformedVersionError
