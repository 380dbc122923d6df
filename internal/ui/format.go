package ui

import (
	"math"
	"strconv"
	"time"

	"github.com/teemow/drivedesk/internal/drive"
)

// DefaultThumbnailURL is the generic file icon shown when Drive returns
// neither a thumbnail nor an icon.
const DefaultThumbnailURL = "https://drive-thirdparty.googleusercontent.com/16/type/application/octet-stream"

// DateLayout is the M/D/YYYY layout used on file cards.
const DateLayout = "1/2/2006"

// Placeholder is shown for values a file does not have.
const Placeholder = "-"

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatSize renders a byte count in the largest fitting unit (base 1024)
// with at most two decimals:
//
//	FormatSize(0)    // "0 Bytes"
//	FormatSize(1024) // "1 KB"
//	FormatSize(1536) // "1.5 KB"
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return Placeholder
	}
	if bytes == 0 {
		return "0 Bytes"
	}

	i := 0
	unit := int64(1)
	for i < len(sizeUnits)-1 && bytes/unit >= 1024 {
		unit *= 1024
		i++
	}

	value := float64(bytes) / float64(unit)
	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[i]
}

// FormatSizeOf renders the size of a file. Google-native documents have no
// binary size and show a placeholder.
func FormatSizeOf(f drive.FileRecord) string {
	if f.IsGoogleNative() {
		return Placeholder
	}
	return FormatSize(f.Size)
}

// FormatDate renders t as M/D/YYYY in UTC; the zero time shows a placeholder.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.UTC().Format(DateLayout)
}

// ThumbnailURL picks the image for a file card: the thumbnail, else the
// type icon, else the generic icon.
func ThumbnailURL(f drive.FileRecord) string {
	switch {
	case f.ThumbnailLink != "":
		return f.ThumbnailLink
	case f.IconLink != "":
		return f.IconLink
	default:
		return DefaultThumbnailURL
	}
}
