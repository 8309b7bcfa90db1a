package types

import "errors"

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrTableNotFound   = errors.New("table not found")
)

// Table operation errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidID     = errors.New("invalid entity ID")
	ErrInvalidData   = errors.New("invalid entity data")
	ErrInvalidFilter = errors.New("invalid filter value type")
)

// Graph invariant errors. These indicate a misuse of the editing API and are
// returned to the immediate caller.
var (
	ErrDuplicateID      = errors.New("entity ID already used in graph")
	ErrAlbumNotFound    = errors.New("album not found")
	ErrImageNotFound    = errors.New("image not found")
	ErrNotChild         = errors.New("album is not a child of the given parent")
	ErrAlbumNotEmpty    = errors.New("album still contains albums or images")
	ErrAlbumCycle       = errors.New("album cannot be moved below itself")
	ErrImageNotInAlbum  = errors.New("image does not belong to the album")
	ErrNotFirst         = errors.New("entity is already first")
	ErrNotLast          = errors.New("entity is already last")
	ErrFieldAlreadySet  = errors.New("field can only be set once")
	ErrFieldNotFound    = errors.New("profile field not found")
	ErrDuplicateField   = errors.New("profile field name already used")
	ErrInvalidName      = errors.New("invalid name")
	ErrSelfRecipient    = errors.New("post recipient must differ from author")
	ErrPostNotFound     = errors.New("post not found")
	ErrInvalidTimestamp = errors.New("timestamp must be positive")
)
