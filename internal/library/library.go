// Package library defines the item snapshot the reconciliation engine works on
// and the contract of the remote library-management service that owns it.
package library

import (
	"context"
	"path/filepath"
)

// Item is a snapshot of one remote record. The engine never mutates it; a
// fresher copy is obtained with Service.RefreshItem.
type Item struct {
	ID         int64
	Title      string
	RootPath   string
	FolderName string
	Path       string

	// Ratings maps a rating source (tmdb, imdb, ...) to its value.
	Ratings map[string]float64

	Quality  string
	Codec    string
	Language string

	// ReleaseName is the scene name or relative path of the item's file.
	ReleaseName string
}

// Folder returns the relative folder name. The remote stores an absolute path
// in the folder field after an update, so only its last element is used.
func (i Item) Folder() string {
	if filepath.IsAbs(i.FolderName) {
		return filepath.Base(i.FolderName)
	}
	return i.FolderName
}

// Service is the remote library-management service.
type Service interface {
	// ListItems returns every item in the library in the service's order.
	ListItems(ctx context.Context) ([]Item, error)
	// GetItem fetches a single item by id.
	GetItem(ctx context.Context, id int64) (Item, error)
	// RefreshItem asks the service to refresh its metadata for id, waits for
	// it to settle, then re-fetches it.
	RefreshItem(ctx context.Context, id int64) (Item, error)
	// UpdateItemPath stores newPath as the item's folder and path.
	UpdateItemPath(ctx context.Context, id int64, newPath string) (Item, error)
	// TriggerCommand queues the named command for the given item.
	TriggerCommand(ctx context.Context, name string, id int64) error
}
