package chat

import "errors"

var (
	// ErrEmptyMessage is returned when a message has neither text nor image.
	ErrEmptyMessage = errors.New("message has no text or image")

	// ErrNotAuthor is returned when editing someone else's message.
	ErrNotAuthor = errors.New("only the author can edit a message")

	// ErrForbidden is returned when a member lacks permission, or the acting
	// user is not on the roster.
	ErrForbidden = errors.New("not permitted")

	// ErrMessageDeleted is returned when acting on a soft-deleted message.
	ErrMessageDeleted = errors.New("message is deleted")

	// ErrMessageNotFound is returned when no message has the given id.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNotFailed is returned when retrying or discarding a message that is
	// not in the failed state.
	ErrNotFailed = errors.New("message is not in failed state")

	// ErrNotPersisted is returned when editing, deleting or reacting to a
	// message that is still sending or has failed.
	ErrNotPersisted = errors.New("message has not been persisted")
)
