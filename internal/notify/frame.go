package notify

import "errors"

// Positional arguments of org.freedesktop.Notifications.Notify
// (susssasa{sv}i), zero indexed.
const (
	argAppName = iota
	argReplacesID
	argIcon
	argSummary
	argBody
	argActions
	argHints
	argExpireTimeout
)

// SyncHint is the hint used by volume/brightness style notifications to
// replace the previous bubble in place.
const SyncHint = "x-canonical-private-synchronous"

// Image decode failures. Frame.ImageErr wraps one of these.
var (
	ErrImageHeader    = errors.New("image header incomplete or invalid")
	ErrImageTooLarge  = errors.New("image payload exceeds byte budget")
	ErrImageHex       = errors.New("image payload is not valid hex")
	ErrImageTruncated = errors.New("image payload shorter than rowstride*height")
	ErrImageFormat    = errors.New("unsupported image pixel layout")
)

// Frame is one Notify call reconstructed from trace lines.
type Frame struct {
	AppName    string
	ReplacesID uint32
	Icon       string
	Summary    string
	Body       string
	Actions    []string
	Hints      map[string]string

	// Image is the decoded image-data hint, nil when absent or undecodable.
	Image *Image
	// ImageErr records why an image hint was present but discarded.
	ImageErr error
}

// Empty reports whether the frame carries nothing worth emitting.
func (f *Frame) Empty() bool {
	return f.AppName == "" && f.Summary == ""
}

// Image is a dense pixel buffer in GdkPixbuf layout: RGB or RGBA, 8 bits per
// sample, rows RowStride bytes apart.
type Image struct {
	Width         int
	Height        int
	RowStride     int
	HasAlpha      bool
	BitsPerSample int
	Pixels        []byte
}

// Channels returns the number of samples per pixel.
func (img *Image) Channels() int {
	if img.HasAlpha {
		return 4
	}
	return 3
}
