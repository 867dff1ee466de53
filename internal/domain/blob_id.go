package domain

import "errors"

// ErrBlobNotFound is returned when a blob does not exist in the repository.
var ErrBlobNotFound = errors.New("blob not found")

// BlobID is the storage key of a blob, for example "profile_pictures/<uuid>.png".
type BlobID string

// String returns the string representation of the BlobID.
func (id BlobID) String() string {
	return string(id)
}
