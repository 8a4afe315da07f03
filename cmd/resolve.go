package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"zippyst/internal/config"
	"zippyst/internal/download"
	"zippyst/internal/extract"
	"zippyst/internal/fetch"
	"zippyst/internal/history"
	"zippyst/internal/httputil"
	"zippyst/internal/media"
	"zippyst/internal/ui"
)

// linkResolver is satisfied by *fetch.Fetcher.
type linkResolver interface {
	FetchAndResolve(ctx context.Context, source string) (*media.File, error)
}

// result is the outcome for one source link.
type result struct {
	Source string
	File   *media.File
	Path   string // set when the file was downloaded
	Err    error
}

// resolveRun is the default command: zippyst <link>...
func resolveRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client := httputil.NewClient(cfg.ClientOptions())
	resolver, err := cfg.Resolver(extract.WithDebugf(debugf))
	if err != nil {
		return err
	}
	fetcher := fetch.New(client, resolver)
	fetcher.SetDebugf(debugf)

	var fetchFile func(context.Context, *media.File) (string, error)
	if flagDownload {
		dir, err := cfg.ExpandDownloadDir()
		if err != nil {
			return fmt.Errorf("resolving download dir: %w", err)
		}
		debugf("downloading into %s", dir)
		fetchFile = func(ctx context.Context, f *media.File) (string, error) {
			return download.Download(ctx, client, f, dir)
		}
	}

	results := resolveAll(ctx, fetcher, args, cfg.Concurrency, fetchFile)

	if cfg.History {
		if err := recordHistory(results, time.Now()); err != nil {
			debugf("saving history: %v", err)
		}
	}

	p := ui.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
	if flagJSON {
		if err := writeJSON(cmd.OutOrStdout(), results, cfg.Output); err != nil {
			return err
		}
	} else {
		printResults(p, results, cfg.Output)
	}

	return summarize(results)
}

// resolveAll resolves every source with at most limit in flight. Each
// result lands in its own slot, so output keeps the input order and one
// failure never cancels the others. When fetchFile is set, every resolved
// file is also downloaded.
func resolveAll(ctx context.Context, r linkResolver, sources []string, limit int, fetchFile func(context.Context, *media.File) (string, error)) []result {
	results := make([]result, len(sources))

	var g errgroup.Group
	g.SetLimit(max(limit, 1))
	for i, source := range sources {
		g.Go(func() error {
			res := result{Source: source}
			res.File, res.Err = r.FetchAndResolve(ctx, source)
			if res.Err == nil && fetchFile != nil {
				res.Path, res.Err = fetchFile(ctx, res.File)
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()

	return results
}

func linkFor(f *media.File, output string) string {
	if output == config.OutputShort {
		return f.Link()
	}
	return f.FullLink()
}

func printResults(p *ui.Printer, results []result, output string) {
	for _, res := range results {
		if res.Err != nil {
			p.Failure(res.Source, res.Err)
			continue
		}
		p.Link(linkFor(res.File, output), res.File)
		if res.Path != "" {
			p.Status("Downloaded: %s", res.Path)
		}
	}
}

type jsonResult struct {
	Source string `json:"source"`
	*media.File
	Link  string `json:"link,omitempty"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w io.Writer, results []result, output string) error {
	out := make([]jsonResult, 0, len(results))
	for _, res := range results {
		jr := jsonResult{Source: res.Source, Path: res.Path}
		if res.Err != nil {
			jr.Error = res.Err.Error()
		} else {
			jr.File = res.File
			jr.Link = linkFor(res.File, output)
		}
		out = append(out, jr)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func recordHistory(results []result, now time.Time) error {
	var entries []media.HistoryEntry
	for _, res := range results {
		if res.File == nil {
			continue
		}
		entries = append(entries, media.HistoryEntry{
			Source:     res.Source,
			File:       *res.File,
			ResolvedAt: now,
		})
	}
	return history.Save(entries...)
}

func summarize(results []result) error {
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d links failed", failed, len(results))
	}
	return nil
}
