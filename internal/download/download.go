// Package download saves resolved files to disk.
// Output paths are validated against directory traversal and written
// through a temp file so a failed transfer never leaves a partial file.
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"zippyst/internal/httputil"
	"zippyst/internal/media"
)

// maxNameAttempts bounds the " (n)" suffixes tried for a taken name.
const maxNameAttempts = 1000

var (
	ErrDownloadFailed = errors.New("download failed")
	ErrBadStatus      = errors.New("unexpected download status")
	ErrRedirection    = errors.New("failed to follow redirection")
)

// Download fetches file.FullLink() into outputDir and returns the written path.
// The file is named after the decoded filename; when that name is taken,
// " (n)" is added before the extension. One redirection is followed.
func Download(ctx context.Context, client *resty.Client, file *media.File, outputDir string) (string, error) {
	absDir, err := filepath.Abs(outputDir)
	if err != nil {
		return "", errors.WithMessage(err, "resolving output directory")
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return "", errors.WithMessage(err, "creating output directory")
	}

	res, err := get(ctx, client, file.FullLink())
	if err != nil {
		return "", err
	}
	body := res.RawBody()
	defer body.Close()

	outputPath, err := reserve(absDir, file.Name)
	if err != nil {
		return "", err
	}
	done := false
	defer func() {
		if !done {
			os.Remove(outputPath)
		}
	}()

	tmpFile, err := os.CreateTemp(absDir, ".zippyst-*.part")
	if err != nil {
		return "", errors.WithMessage(err, "creating temp file")
	}
	tmpPath := tmpFile.Name()

	if _, err := io.Copy(tmpFile, body); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", errors.WithMessage(ErrDownloadFailed, err.Error())
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", errors.WithMessage(err, "closing temp file")
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return "", errors.WithMessage(err, "renaming download")
	}

	done = true
	return outputPath, nil
}

// get requests uri and follows at most one redirection. The returned
// response is 2xx with an unread body.
func get(ctx context.Context, client *resty.Client, uri string) (*resty.Response, error) {
	res, err := request(ctx, client, uri)
	if err != nil {
		return nil, err
	}

	if code := res.StatusCode(); code >= 300 && code < 400 {
		res.RawBody().Close()
		location := res.Header().Get("Location")
		if location == "" {
			return nil, errors.WithMessagef(ErrRedirection, "%d without Location header", code)
		}
		next, err := httputil.ResolveLocation(uri, location)
		if err != nil {
			return nil, errors.WithMessagef(ErrRedirection, "location %q: %v", location, err)
		}
		if res, err = request(ctx, client, next); err != nil {
			return nil, err
		}
	}

	if !res.IsSuccess() {
		res.RawBody().Close()
		return nil, errors.WithMessagef(ErrBadStatus, "%d", res.StatusCode())
	}
	return res, nil
}

func request(ctx context.Context, client *resty.Client, uri string) (*resty.Response, error) {
	res, err := client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(uri)
	if err != nil {
		return nil, errors.WithMessage(ErrDownloadFailed, err.Error())
	}
	return res, nil
}

// reserve claims a free path for name in dir by creating it exclusively,
// so concurrent downloads of equally named files never share a target.
func reserve(dir, name string) (string, error) {
	base, err := httputil.SafeDownloadPath(dir, name)
	if err != nil {
		return "", errors.WithMessage(err, "invalid output path")
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 0; n < maxNameAttempts; n++ {
		path := base
		if n > 0 {
			path = fmt.Sprintf("%s (%d)%s", stem, n, ext)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			return path, nil
		}
		if !os.IsExist(err) {
			return "", errors.WithMessage(err, "creating output file")
		}
	}
	return "", errors.Errorf("no free name for %s in %s", filepath.Base(base), dir)
}
