package extract

import "errors"

// Resolution failures. Every error returned by a Resolver matches exactly
// one of these with errors.Is; the underlying cause, if any, is wrapped.
var (
	ErrScriptNotFound          = errors.New("cannot find script tag")
	ErrInvalidSelector         = errors.New("invalid CSS selector")
	ErrVariableExtraction      = errors.New("failed to extract variable")
	ErrVariableComputation     = errors.New("failed to compute variable")
	ErrLinkGeneratorExtraction = errors.New("failed to extract link generator")
	ErrLinkComputation         = errors.New("failed to compute link key")
	ErrDomainExtraction        = errors.New("failed to extract domain name")
	ErrFileIDExtraction        = errors.New("failed to extract file id")
	ErrFilenameExtraction      = errors.New("failed to extract filename")
	ErrInvalidUTF8Filename     = errors.New("filename is not valid UTF-8")
)

// ErrUnknownScheme is returned when a scheme inventory names a scheme
// that is not built in.
var ErrUnknownScheme = errors.New("unknown scheme")
