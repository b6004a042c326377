// Package store provides the repository operations over the tudu store.
//
// A Repository wraps an open db.DB and exposes one method per operation,
// each running in its own transaction:
//
//	repo := store.New(database, store.DefaultConfig())
//
//	list := &schema.TodoList{ID: id, Title: "Home", CreatedAt: now, UpdatedAt: now}
//	if err := repo.AddList(ctx, list); err != nil {
//	    return err
//	}
//
//	tasks, err := repo.TasksByList(ctx, list.ID)
//
// Read operations retry up to MaxRetries times with a fixed RetryDelay when
// the store reports db.ErrInvalidState (an upgrade in progress or a lock
// held by another process). Any other failure is returned immediately.
//
// DeleteList cascades to the list's tasks inside the same transaction, and
// Replace clears and reloads both collections atomically, so an import
// either lands completely or leaves the store untouched.
package store
