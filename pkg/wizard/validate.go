package wizard

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

// AllowedImageTypes lists the accepted image MIME types.
var AllowedImageTypes = []string{"image/png", "image/jpeg", "image/webp"}

const mib = 1 << 20

// NormalizeCode trims surrounding space and upper-cases the code.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidateCode checks that code is present and exactly length characters.
func ValidateCode(code string, length int) error {
	if code == "" {
		return &ValidationError{Reason: ReasonCodeEmpty}
	}
	if n := utf8.RuneCountInString(code); length > 0 && n != length {
		return &ValidationError{Reason: ReasonCodeLength, Length: n, Limit: int64(length)}
	}
	return nil
}

// AcceptImage checks the declared type against AllowedImageTypes and the
// size against maxBytes. The type is checked first. The larger of the declared
// size and the payload length is compared against the limit.
func AcceptImage(img Image, maxBytes int64) error {
	contentType := baseMediaType(img.ContentType)
	if !slices.Contains(AllowedImageTypes, contentType) {
		return &ValidationError{Reason: ReasonImageType, Value: img.ContentType}
	}
	size := max(img.Size, int64(len(img.Data)))
	if maxBytes > 0 && size > maxBytes {
		return &ValidationError{Reason: ReasonImageSize, Size: size, Limit: maxBytes}
	}
	if len(img.Data) == 0 {
		return &ValidationError{Reason: ReasonImageEmpty}
	}
	return nil
}

// FormatMB renders a byte count in mebibytes with two decimals.
func FormatMB(size int64) string {
	return fmt.Sprintf("%.2f", float64(size)/mib)
}

// FormatLimit renders a byte limit, dropping decimals for whole mebibytes.
func FormatLimit(limit int64) string {
	if limit > 0 && limit%mib == 0 {
		return fmt.Sprintf("%dMB", limit/mib)
	}
	return FormatMB(limit) + "MB"
}

// LoadImage reads an image from disk, declaring its type from the file
// extension and falling back to content sniffing. Files larger than maxBytes
// are only sniffed, not read; the returned Image carries the size so
// AcceptImage can report it.
func LoadImage(path string, maxBytes int64) (Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Image{}, fmt.Errorf("wizard: stat image: %w", err)
	}
	if info.IsDir() {
		return Image{}, fmt.Errorf("wizard: %s is a directory", path)
	}

	img := Image{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: baseMediaType(mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))),
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		if img.ContentType == "" {
			img.ContentType = sniffFile(path)
		}
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("wizard: read image: %w", err)
	}
	img.Data = data
	img.Size = int64(len(data))
	if img.ContentType == "" && len(data) > 0 {
		img.ContentType = baseMediaType(http.DetectContentType(data))
	}
	return img, nil
}

// sniffFile detects the type from the first 512 bytes, or "" if unreadable.
func sniffFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return ""
	}
	return baseMediaType(http.DetectContentType(head[:n]))
}

func baseMediaType(value string) string {
	if value == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(value))
	}
	return strings.ToLower(mediaType)
}
