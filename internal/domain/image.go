package domain

// Profile picture validation errors.
var (
	ErrProfilePictureType = NewError(ErrValidation, "Profile picture must be a JPEG or PNG image.")
	ErrProfilePictureSize = NewError(ErrValidation, "Profile picture file size should not exceed 5 MB.")
)

// Upload is a file attached to a request.
type Upload struct {
	Filename    string
	ContentType string // As declared by the client
	Size        int64
	Body        []byte
}
