// Package remote provides the HTTP client for the remote drive API.
package remote

import (
	"errors"
	"fmt"
	"time"
)

// Item is one file or folder as returned by the drive API.
type Item struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Size    int64        `json:"size"`
	ModTime time.Time    `json:"lastModifiedDateTime"`
	Folder  *FolderFacet `json:"folder,omitempty"`
	File    *FileFacet   `json:"file,omitempty"`
}

// FolderFacet is present on folder items.
type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

// FileFacet is present on file items.
type FileFacet struct {
	MimeType string `json:"mimeType"`
}

// IsFolder returns true for folder items.
func (it *Item) IsFolder() bool {
	return it.Folder != nil
}

// Error is a remote drive API failure with a retryable/non-retryable split.
type Error struct {
	Op        string
	Status    int // HTTP status, 0 for transport failures
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a retryable remote failure.
func IsRetryable(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Retryable
}
