package wizard

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// DecodePreview reads the image header to report format and dimensions.
func DecodePreview(img Image) (Preview, error) {
	if len(img.Data) == 0 {
		return Preview{}, &ValidationError{Reason: ReasonImageEmpty}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return Preview{}, fmt.Errorf("wizard: decode %s: %w", img.Name, err)
	}
	return Preview{
		Name:   img.Name,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Size:   img.Size,
	}, nil
}
