// Package schema defines the records persisted by the local store and
// exchanged with the remote gist.
//
// # Records
//
// Two record kinds exist: TodoList and Task. Timestamps are Unix epoch
// milliseconds so that a snapshot written by any client decodes to the
// same values.
//
//	{
//	  "id": "3f1c...",
//	  "text": "Buy milk",
//	  "completed": false,
//	  "createdAt": 1767225600000,
//	  "updatedAt": 1767225600000,
//	  "todoListId": "9ab2..."
//	}
//
// # Ownership
//
// Every task belongs to exactly one list through TodoListID. Deleting a
// list deletes its tasks. A Snapshot may briefly hold tasks whose list is
// inserted later in the same import, but once an import settles every task
// references a list present in the store.
//
// # Usage Examples
//
// Creating a task for a list:
//
//	now := time.Now().UnixMilli()
//	task := schema.Task{
//	    ID:         uuid.NewString(),
//	    Text:       "Buy milk",
//	    CreatedAt:  now,
//	    UpdatedAt:  now,
//	    TodoListID: list.ID,
//	}
//	if err := task.Validate(); err != nil {
//	    return err
//	}
package schema
