package main

import "github.com/starford/patchwork/internal/apperr"

// Process exit codes, one per failure kind so scripts can branch on them.
const (
	exitOK               = 0
	exitFailure          = 1
	exitInvalidPatch     = 2
	exitTargetNotFound   = 3
	exitBlockNotFound    = 4
	exitAmbiguousBlock   = 5
	exitChecksumMismatch = 6
	exitWriteFailed      = 7
)

func exitCode(err error) int {
	switch apperr.Code(err) {
	case "":
		return exitOK
	case apperr.CodeInvalidPatch:
		return exitInvalidPatch
	case apperr.CodeTargetNotFound:
		return exitTargetNotFound
	case apperr.CodeBlockNotFound:
		return exitBlockNotFound
	case apperr.CodeAmbiguousBlock:
		return exitAmbiguousBlock
	case apperr.CodeChecksumMismatch:
		return exitChecksumMismatch
	case apperr.CodeWriteFailed:
		return exitWriteFailed
	default:
		return exitFailure
	}
}
