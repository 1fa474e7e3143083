// Package librarytest provides an in-memory library.Service for tests.
package librarytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/javi11/metadatarr/internal/library"
)

// Command records one TriggerCommand call.
type Command struct {
	Name string
	ID   int64
}

// Fake is an in-memory library.Service. Items keep insertion order.
type Fake struct {
	mu    sync.Mutex
	order []int64
	items map[int64]library.Item

	// Injected failures.
	ListErr    error
	UpdateErr  error
	CommandErr error
	RefreshErr error

	// OnRefresh, when set, rewrites an item during RefreshItem.
	OnRefresh func(item library.Item) library.Item

	Updates   []library.Item
	Commands  []Command
	Refreshes []int64
}

// New returns a Fake holding items.
func New(items ...library.Item) *Fake {
	f := &Fake{items: make(map[int64]library.Item)}
	for _, item := range items {
		f.Put(item)
	}
	return f
}

// Put adds or replaces an item.
func (f *Fake) Put(item library.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.items[item.ID]; !ok {
		f.order = append(f.order, item.ID)
	}
	f.items[item.ID] = item
}

// Item returns the stored item.
func (f *Fake) Item(id int64) library.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

// Mutations returns the number of updates and commands received.
func (f *Fake) Mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Updates) + len(f.Commands)
}

// Reset clears the recorded calls.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Updates = nil
	f.Commands = nil
	f.Refreshes = nil
}

func (f *Fake) ListItems(_ context.Context) ([]library.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}

	items := make([]library.Item, 0, len(f.order))
	for _, id := range f.order {
		items = append(items, f.items[id])
	}
	return items, nil
}

func (f *Fake) GetItem(_ context.Context, id int64) (library.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.items[id]
	if !ok {
		return library.Item{}, fmt.Errorf("item %d not found", id)
	}
	return item, nil
}

func (f *Fake) RefreshItem(_ context.Context, id int64) (library.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Refreshes = append(f.Refreshes, id)
	if f.RefreshErr != nil {
		return library.Item{}, f.RefreshErr
	}

	item, ok := f.items[id]
	if !ok {
		return library.Item{}, fmt.Errorf("item %d not found", id)
	}
	if f.OnRefresh != nil {
		item = f.OnRefresh(item)
		f.items[id] = item
	}
	return item, nil
}

// UpdateItemPath fails with ctx's error once ctx is done, like a cancelled
// request would.
func (f *Fake) UpdateItemPath(ctx context.Context, id int64, newPath string) (library.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return library.Item{}, err
	}

	if f.UpdateErr != nil {
		return library.Item{}, f.UpdateErr
	}

	item, ok := f.items[id]
	if !ok {
		return library.Item{}, fmt.Errorf("item %d not found", id)
	}
	item.FolderName = newPath
	item.Path = newPath
	f.items[id] = item
	f.Updates = append(f.Updates, item)
	return item, nil
}

func (f *Fake) TriggerCommand(ctx context.Context, name string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if f.CommandErr != nil {
		return f.CommandErr
	}
	f.Commands = append(f.Commands, Command{Name: name, ID: id})
	return nil
}

var _ library.Service = (*Fake)(nil)
