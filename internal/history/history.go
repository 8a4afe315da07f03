// Package history records resolved links in a TSV file.
// Uses atomic writes (temp+rename) to prevent data corruption.
package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"zippyst/internal/config"
	"zippyst/internal/media"
)

// TSV columns: source, domain, id, key, name, encoded_name, resolved_at
const numColumns = 7

// Load reads the history file and returns all entries.
func Load() ([]media.HistoryEntry, error) {
	path, err := config.HistoryPath()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	var entries []media.HistoryEntry
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseLine(line)
		if err != nil {
			continue // Skip malformed lines
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	return entries, nil
}

// Save writes or updates the entries for their sources.
func Save(added ...media.HistoryEntry) error {
	if len(added) == 0 {
		return nil
	}

	entries, err := Load()
	if err != nil {
		return err
	}

	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.Source] = i
	}
	for _, entry := range added {
		if i, ok := index[entry.Source]; ok {
			entries[i] = entry
			continue
		}
		index[entry.Source] = len(entries)
		entries = append(entries, entry)
	}

	return writeAll(entries)
}

// Remove deletes the entry for source. It reports whether one existed.
func Remove(source string) (bool, error) {
	entries, err := Load()
	if err != nil {
		return false, err
	}

	var filtered []media.HistoryEntry
	for _, e := range entries {
		if e.Source != source {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == len(entries) {
		return false, nil
	}

	return true, writeAll(filtered)
}

// Clear deletes the history file.
func Clear() error {
	path, err := config.HistoryPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing history: %w", err)
	}
	return nil
}

// writeAll replaces the history file with entries via temp file + rename.
func writeAll(entries []media.HistoryEntry) (err error) {
	path, err := config.HistoryPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "history-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, e := range entries {
		fmt.Fprintln(w, formatLine(e))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming history file: %w", err)
	}
	return nil
}

// parseLine parses a TSV line into a HistoryEntry.
func parseLine(line string) (media.HistoryEntry, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < numColumns {
		return media.HistoryEntry{}, fmt.Errorf("expected %d columns, got %d", numColumns, len(fields))
	}

	key, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return media.HistoryEntry{}, fmt.Errorf("parsing key: %w", err)
	}
	resolvedAt, _ := time.Parse(time.RFC3339, fields[6])

	return media.HistoryEntry{
		Source: fields[0],
		File: media.File{
			Domain:      fields[1],
			ID:          fields[2],
			Key:         key,
			Name:        fields[4],
			EncodedName: fields[5],
		},
		ResolvedAt: resolvedAt,
	}, nil
}

// formatLine converts a HistoryEntry to a TSV line.
func formatLine(e media.HistoryEntry) string {
	return strings.Join([]string{
		clean(e.Source),
		clean(e.File.Domain),
		clean(e.File.ID),
		strconv.FormatInt(e.File.Key, 10),
		clean(e.File.Name),
		clean(e.File.EncodedName),
		e.ResolvedAt.UTC().Format(time.RFC3339),
	}, "\t")
}

var fieldReplacer = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

func clean(s string) string {
	return fieldReplacer.Replace(s)
}
