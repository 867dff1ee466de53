package authsvc

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	"github.com/mkrupp/homecase-accounts/internal/domain"
)

const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
)

type imageCodec struct {
	ext    string
	decode func(io.Reader) (image.Image, error)
	encode func(io.Writer, image.Image) error
}

//nolint:gochecknoglobals
var imageCodecs = map[string]imageCodec{
	MIMETypeJPEG: {
		ext:    ".jpg",
		decode: jpeg.Decode,
		encode: func(w io.Writer, i image.Image) error { return jpeg.Encode(w, i, &jpeg.Options{Quality: 90}) },
	},
	MIMETypePNG: {
		ext:    ".png",
		decode: png.Decode,
		encode: png.Encode,
	},
}

// checkProfilePicture validates an upload's declared type, its actual content and
// its size. Returns the canonical MIME type on success.
func checkProfilePicture(upload *domain.Upload, maxSize int64) (string, error) {
	declared := mediaType(upload.ContentType)

	codec, ok := imageCodecs[declared]
	if !ok {
		return "", domain.ErrProfilePictureType
	}

	if !mimetype.Detect(upload.Body).Is(declared) {
		return "", domain.ErrProfilePictureType
	}

	if int64(len(upload.Body)) > maxSize || upload.Size > maxSize {
		return "", domain.ErrProfilePictureSize
	}

	if _, err := codec.decode(bytes.NewReader(upload.Body)); err != nil {
		return "", domain.ErrProfilePictureType
	}

	return declared, nil
}

// prepareProfilePicture downscales the picture to maxWidth, keeping the aspect
// ratio and format. Pictures that are narrow enough are kept byte for byte.
func prepareProfilePicture(body []byte, mimeType string, maxWidth int) ([]byte, string, error) {
	codec, ok := imageCodecs[mimeType]
	if !ok {
		return nil, "", domain.ErrProfilePictureType
	}

	if maxWidth <= 0 {
		return body, codec.ext, nil
	}

	original, err := codec.decode(bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	bounds := original.Bounds()
	if bounds.Dx() <= maxWidth {
		return body, codec.ext, nil
	}

	height := max(1, bounds.Dy()*maxWidth/bounds.Dx())
	bitmap := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(bitmap, bitmap.Bounds(), original, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := codec.encode(&buf, bitmap); err != nil {
		return nil, "", fmt.Errorf("encode image: %w", err)
	}

	return buf.Bytes(), codec.ext, nil
}

func mediaType(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")

	return strings.ToLower(strings.TrimSpace(base))
}
