// Package extract resolves share pages into direct download links by
// recognising which obfuscation scheme the page's download script follows
// and evaluating the key it computes.
package extract

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"zippyst/internal/media"
)

// Resolver matches pages against an ordered scheme inventory. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	schemes []Scheme
	debugf  func(format string, args ...any)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSchemes replaces the default inventory. Schemes are tried in the
// order given.
func WithSchemes(schemes ...Scheme) Option {
	return func(r *Resolver) {
		r.schemes = append([]Scheme(nil), schemes...)
	}
}

// WithDebugf sets a logger for match decisions.
func WithDebugf(fn func(format string, args ...any)) Option {
	return func(r *Resolver) { r.debugf = fn }
}

// New creates a Resolver using DefaultSchemes unless WithSchemes says otherwise.
func New(opts ...Option) *Resolver {
	r := &Resolver{schemes: DefaultSchemes()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schemes returns the inventory in priority order.
func (r *Resolver) Schemes() []Scheme {
	return append([]Scheme(nil), r.schemes...)
}

var defaultResolver = New()

// Resolve resolves page with the default scheme inventory.
func Resolve(domain, page string) (*media.File, error) {
	return defaultResolver.Resolve(domain, page)
}

// Locate returns the script fragment of the first scheme whose anchor
// matches page, along with that scheme.
func (r *Resolver) Locate(page string) (string, Scheme, error) {
	return r.locate(NewPage(page))
}

func (r *Resolver) locate(p *Page) (string, Scheme, error) {
	for _, s := range r.schemes {
		fragment, ok, err := s.Anchor.Find(p)
		if err != nil {
			return "", Scheme{}, fmt.Errorf("%w: %s: %w", ErrScriptNotFound, s.Name, err)
		}
		if ok {
			r.logf("scheme %s matched %s (%d bytes)", s.Name, s.Anchor, len(fragment))
			return fragment, s, nil
		}
		r.logf("scheme %s: no %s", s.Name, s.Anchor)
	}
	return "", Scheme{}, ErrScriptNotFound
}

// Resolve builds the file descriptor for page. The domain is taken as
// given; use ResolveURL to derive it from the share page URL.
func (r *Resolver) Resolve(domain, page string) (*media.File, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, ErrDomainExtraction
	}

	p := NewPage(page)
	fragment, scheme, err := r.locate(p)
	if err != nil {
		return nil, err
	}

	// The first matching scheme is final; a later failure never falls
	// through to the next one.
	fragment, err = scheme.inline(p, fragment)
	if err != nil {
		return nil, err
	}

	id, keyExpr, encodedName, err := scheme.extract(fragment)
	if err != nil {
		return nil, err
	}

	vars, err := ExtractVariables(fragment)
	if err != nil {
		return nil, err
	}

	key, err := ComputeKey(keyExpr, vars)
	if err != nil {
		return nil, err
	}
	r.logf("key expression %q with %d variables = %d", keyExpr, len(vars), key)

	name, err := DecodeFilename(encodedName)
	if err != nil {
		return nil, err
	}

	return &media.File{
		Domain:      domain,
		ID:          id,
		Key:         key,
		Name:        name,
		EncodedName: encodedName,
	}, nil
}

// ResolveURL resolves page using the host of source as the domain.
func (r *Resolver) ResolveURL(source, page string) (*media.File, error) {
	domain, err := DomainFromURL(source)
	if err != nil {
		return nil, err
	}
	return r.Resolve(domain, page)
}

// DomainFromURL returns the host name of a share page URL.
func DomainFromURL(source string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDomainExtraction, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: no host in %q", ErrDomainExtraction, source)
	}
	return host, nil
}

// DecodeFilename percent-decodes an encoded filename.
func DecodeFilename(encoded string) (string, error) {
	name, err := url.PathUnescape(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidUTF8Filename, err)
	}
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUTF8Filename, encoded)
	}
	return name, nil
}

func (r *Resolver) logf(format string, args ...any) {
	if r.debugf != nil {
		r.debugf(format, args...)
	}
}
