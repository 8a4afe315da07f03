// Package media defines shared types for the zippyst application.
package media

import (
	"fmt"
	"time"
)

// File describes a resolved share page.
type File struct {
	Domain      string `json:"domain"`       // Host the share page was served from
	ID          string `json:"id"`           // Raw file ID from the href statement
	Key         int64  `json:"key"`          // Evaluated download key
	Name        string `json:"name"`         // Decoded filename
	EncodedName string `json:"encoded_name"` // Filename as it appears in the script
}

// Link returns the direct download URL with the generic DOWNLOAD suffix.
func (f File) Link() string {
	return fmt.Sprintf("https://%s/d/%s/%d/DOWNLOAD", f.Domain, f.ID, f.Key)
}

// FullLink returns the direct download URL ending in the encoded filename.
func (f File) FullLink() string {
	return fmt.Sprintf("https://%s/d/%s/%d/%s", f.Domain, f.ID, f.Key, f.EncodedName)
}

func (f File) String() string {
	return f.FullLink()
}

// HistoryEntry represents a single resolved link in the history log.
type HistoryEntry struct {
	Source     string    // Share page URL given on the command line
	File       File      // Resolved descriptor
	ResolvedAt time.Time // When the link was resolved
}
