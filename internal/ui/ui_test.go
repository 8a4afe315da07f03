package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"zippyst/internal/extract"
	"zippyst/internal/media"
)

var testFile = media.File{
	Domain:      "www3.zippyshare.com",
	ID:          "CDCi2wVT",
	Key:         196,
	Name:        "Gillette Commercial.mp4",
	EncodedName: "Gillette%20Commercial.mp4",
}

func TestLinkPlainWhenPiped(t *testing.T) {
	var out, errOut bytes.Buffer
	p := New(&out, &errOut)

	p.Link(testFile.FullLink(), &testFile)
	p.Link(testFile.Link(), &testFile)

	assert.Equal(t,
		"https://www3.zippyshare.com/d/CDCi2wVT/196/Gillette%20Commercial.mp4\n"+
			"https://www3.zippyshare.com/d/CDCi2wVT/196/DOWNLOAD\n",
		out.String())
	assert.Empty(t, errOut.String())
}

func TestFailureGoesToStderr(t *testing.T) {
	var out, errOut bytes.Buffer
	p := New(&out, &errOut)

	p.Failure("https://example.com/v/x/file.html", errors.New("script not found"))

	assert.Empty(t, out.String())
	assert.Equal(t, "https://example.com/v/x/file.html: script not found\n", errOut.String())
}

func TestSchemesListing(t *testing.T) {
	var out bytes.Buffer
	p := New(&out, &bytes.Buffer{})

	schemes := extract.DefaultSchemes()
	p.Schemes(schemes)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, len(schemes))
	for i, s := range schemes {
		assert.Contains(t, lines[i], s.Name)
	}
	assert.True(t, strings.HasPrefix(lines[0], "1. omg-attribute"))
}

func TestFormatHistory(t *testing.T) {
	entries := []media.HistoryEntry{
		{Source: "https://www3.zippyshare.com/v/CDCi2wVT/file.html", File: testFile},
		{Source: "b", File: testFile, ResolvedAt: time.Date(2022, 7, 23, 12, 0, 0, 0, time.UTC)},
	}

	lines := FormatHistory(entries)
	assert.Len(t, lines, 2)
	assert.Equal(t,
		"https://www3.zippyshare.com/d/CDCi2wVT/196/Gillette%20Commercial.mp4\tGillette Commercial.mp4 <- https://www3.zippyshare.com/v/CDCi2wVT/file.html",
		lines[0])
	assert.Contains(t, lines[1], "Gillette Commercial.mp4 (")
	assert.True(t, strings.HasSuffix(lines[1], "<- b"))
}

func TestHistoryPlain(t *testing.T) {
	var out bytes.Buffer
	p := New(&out, &bytes.Buffer{})

	p.History([]media.HistoryEntry{{Source: "a", File: testFile}})
	assert.Equal(t, FormatHistory([]media.HistoryEntry{{Source: "a", File: testFile}})[0]+"\n", out.String())
}
