package domain

import (
	"bytes"
	"fmt"
	"io"
)

// Blob represents a stored binary object, such as a profile picture.
type Blob struct {
	ID          BlobID
	ContentType string
	Body        []byte
}

// NewBlob creates a new Blob with the given ID, content type and content.
func NewBlob(id BlobID, contentType string, body []byte) *Blob {
	return &Blob{
		ID:          id,
		ContentType: contentType,
		Body:        body,
	}
}

// Size returns the size of the blob's content in bytes.
func (blob *Blob) Size() int64 {
	return int64(len(blob.Body))
}

// Read returns a reader for accessing the blob's content.
func (blob *Blob) Read() io.Reader {
	return bytes.NewReader(blob.Body)
}

// WriteTo writes the blob's content to the given writer.
func (blob *Blob) WriteTo(writer io.Writer) (int64, error) {
	n, err := writer.Write(blob.Body)
	if err != nil {
		return int64(n), fmt.Errorf("write: %w", err)
	}

	return int64(n), nil
}

// ReadFrom replaces the blob's content with everything read from reader.
func (blob *Blob) ReadFrom(reader io.Reader) (int64, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return 0, fmt.Errorf("read all: %w", err)
	}

	blob.Body = body

	return int64(len(body)), nil
}
