// Package fetch retrieves share pages and hands them to the resolver.
package fetch

import (
	"bytes"
	"context"
	"io"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"

	"zippyst/internal/extract"
	"zippyst/internal/httputil"
	"zippyst/internal/media"
)

// maxPageSize bounds how much of a share page is read.
const maxPageSize = 10 * 1024 * 1024

var utf8BOM = []byte("\xef\xbb\xbf")

var (
	ErrInvalidURL              = errors.New("invalid url")
	ErrContentFetching         = errors.New("failed to fetch page content")
	ErrInvalidStatusCode       = errors.New("invalid status code")
	ErrRedirection             = errors.New("failed to follow redirection")
	ErrInvalidUTF8PageContent  = errors.New("page content is not valid UTF-8")
	ErrContentStreamingFailure = errors.New("failed to stream page content")
)

// Fetcher downloads share pages.
type Fetcher struct {
	client   *resty.Client
	resolver *extract.Resolver
	debugf   func(format string, args ...any)
}

// New creates a Fetcher. A nil resolver uses the default scheme inventory.
func New(client *resty.Client, resolver *extract.Resolver) *Fetcher {
	if resolver == nil {
		resolver = extract.New()
	}
	return &Fetcher{client: client, resolver: resolver}
}

// SetDebugf sets a logger for requests and redirects.
func (f *Fetcher) SetDebugf(fn func(format string, args ...any)) {
	f.debugf = fn
}

// Fetch returns the decoded text of the page at uri, following at most
// one redirection.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (string, error) {
	if err := httputil.ValidateURL(uri); err != nil {
		return "", errors.WithMessage(ErrInvalidURL, err.Error())
	}

	res, err := f.get(ctx, uri)
	if err != nil {
		return "", err
	}

	if isRedirect(res.StatusCode()) {
		location := res.Header().Get("Location")
		if location == "" {
			return "", errors.WithMessagef(ErrRedirection, "%d without Location header", res.StatusCode())
		}
		next, err := httputil.ResolveLocation(uri, location)
		if err != nil {
			return "", errors.WithMessagef(ErrRedirection, "location %q: %v", location, err)
		}
		f.logf("redirected %s -> %s", uri, next)

		res, err = f.get(ctx, next)
		if err != nil {
			return "", err
		}
	}

	if !res.IsSuccess() {
		return "", errors.WithMessagef(ErrInvalidStatusCode, "%d", res.StatusCode())
	}

	return decode(res)
}

// FetchAndResolve fetches the share page at source and resolves it.
func (f *Fetcher) FetchAndResolve(ctx context.Context, source string) (*media.File, error) {
	page, err := f.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	return f.resolver.ResolveURL(source, page)
}

func (f *Fetcher) get(ctx context.Context, uri string) (*resty.Response, error) {
	f.logf("GET %s", uri)

	res, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(uri)
	if err != nil {
		return nil, errors.WithMessage(ErrContentFetching, err.Error())
	}

	code := res.StatusCode()
	if !(res.IsSuccess() || isRedirect(code)) {
		closeBody(res)
		return nil, errors.WithMessagef(ErrInvalidStatusCode, "%d", code)
	}
	if isRedirect(code) {
		closeBody(res)
	}
	return res, nil
}

// decode reads the body and converts it to UTF-8. Pages that are, or
// claim to be, UTF-8 are validated as-is rather than repaired.
func decode(res *resty.Response) (string, error) {
	body := res.RawBody()
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, maxPageSize+1))
	if err != nil {
		return "", errors.WithMessage(ErrContentStreamingFailure, err.Error())
	}
	if len(raw) > maxPageSize {
		return "", errors.WithMessagef(ErrContentStreamingFailure, "page exceeds %d bytes", maxPageSize)
	}

	enc, name, certain := charset.DetermineEncoding(raw, res.Header().Get("Content-Type"))
	if !certain {
		// Without a header charset or BOM, only a <meta> declaration moves
		// a page off UTF-8. The sniffer's windows-1252 fallback would
		// otherwise accept any byte sequence.
		enc, name, _ = charset.DetermineEncoding(metaSniff(raw), "")
	}
	if name == "utf-8" {
		raw = bytes.TrimPrefix(raw, utf8BOM)
		if !utf8.Valid(raw) {
			return "", ErrInvalidUTF8PageContent
		}
		return string(raw), nil
	}

	text, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", errors.WithMessagef(ErrInvalidUTF8PageContent, "decoding %s: %v", name, err)
	}
	if !utf8.Valid(text) {
		return "", ErrInvalidUTF8PageContent
	}
	return string(text), nil
}

// metaSniff keeps the ASCII bytes of the page head, where any <meta>
// charset lives, behind a UTF-8 marker so a page without one sniffs as
// UTF-8.
func metaSniff(raw []byte) []byte {
	head := raw[:min(len(raw), 1022)]
	sniff := append(make([]byte, 0, len(head)+2), "\xc3\xa9"...)
	for _, c := range head {
		if c < utf8.RuneSelf {
			sniff = append(sniff, c)
		}
	}
	return sniff
}

func closeBody(res *resty.Response) {
	if body := res.RawBody(); body != nil {
		body.Close()
	}
}

func isRedirect(code int) bool {
	return code >= 300 && code < 400
}

func (f *Fetcher) logf(format string, args ...any) {
	if f.debugf != nil {
		f.debugf(format, args...)
	}
}
