package notify

import (
	"encoding/hex"
	"fmt"
	"image"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

// DefaultThumbnailSize is the bounding box decoded images are fitted into.
const DefaultThumbnailSize = 42

// DecodeImage turns the collected image-data header ints
// [width, height, rowstride, has_alpha, bits_per_sample, ...] and the hex rows
// of its byte array into an Image no larger than box x box. Extra header
// values are ignored. A box <= 0 disables downscaling.
func DecodeImage(header []int, hexRows []string, box int) (*Image, error) {
	if len(header) < 5 {
		return nil, fmt.Errorf("%w: %d header values", ErrImageHeader, len(header))
	}
	width, height, stride := header[0], header[1], header[2]
	hasAlpha := header[3] != 0
	bits := header[4]

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrImageHeader, width, height)
	}
	if bits != 8 {
		return nil, fmt.Errorf("%w: %d bits per sample", ErrImageFormat, bits)
	}
	channels := 3
	if hasAlpha {
		channels = 4
	}
	if width > math.MaxInt32/channels || stride < width*channels {
		return nil, fmt.Errorf("%w: rowstride %d for width %d", ErrImageFormat, stride, width)
	}

	raw, err := decodeHexRows(hexRows)
	if err != nil {
		return nil, err
	}
	if height > len(raw)/stride {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrImageTruncated, len(raw), stride*height)
	}
	raw = raw[:stride*height]

	src := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := raw[y*stride : y*stride+width*channels]
		out := src.Pix[y*src.Stride : y*src.Stride+width*4]
		for x := 0; x < width; x++ {
			out[x*4+0] = row[x*channels+0]
			out[x*4+1] = row[x*channels+1]
			out[x*4+2] = row[x*channels+2]
			if hasAlpha {
				out[x*4+3] = row[x*channels+3]
			} else {
				out[x*4+3] = 0xff
			}
		}
	}

	dst := src
	if w, h := thumbnailSize(width, height, box); w != width || h != height {
		dst = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	return packNRGBA(dst, hasAlpha), nil
}

// NRGBA exposes the pixel buffer as a standard library image for renderers.
func (img *Image) NRGBA() (*image.NRGBA, error) {
	channels := img.Channels()
	if img.Width <= 0 || img.Height <= 0 || img.RowStride < img.Width*channels {
		return nil, fmt.Errorf("%w: %dx%d stride %d", ErrImageFormat, img.Width, img.Height, img.RowStride)
	}
	if len(img.Pixels) < img.RowStride*(img.Height-1)+img.Width*channels {
		return nil, fmt.Errorf("%w: have %d bytes", ErrImageTruncated, len(img.Pixels))
	}

	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		row := img.Pixels[y*img.RowStride:]
		pix := out.Pix[y*out.Stride:]
		for x := 0; x < img.Width; x++ {
			copy(pix[x*4:x*4+3], row[x*channels:x*channels+3])
			pix[x*4+3] = 0xff
			if img.HasAlpha {
				pix[x*4+3] = row[x*channels+3]
			}
		}
	}
	return out, nil
}

func decodeHexRows(rows []string) ([]byte, error) {
	var b strings.Builder
	for _, row := range rows {
		for _, field := range strings.Fields(row) {
			b.WriteString(field)
		}
	}
	text := b.String()
	if len(text)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrImageHex, len(text))
	}
	raw, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageHex, err)
	}
	return raw, nil
}

// thumbnailSize fits width x height into box x box keeping the aspect ratio.
// Images already inside the box are left alone.
func thumbnailSize(width, height, box int) (int, int) {
	if box <= 0 || (width <= box && height <= box) {
		return width, height
	}
	scale := math.Min(float64(box)/float64(width), float64(box)/float64(height))
	w := max(1, int(math.Round(float64(width)*scale)))
	h := max(1, int(math.Round(float64(height)*scale)))
	return min(w, box), min(h, box)
}

func packNRGBA(src *image.NRGBA, hasAlpha bool) *Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	channels := 3
	if hasAlpha {
		channels = 4
	}

	pixels := make([]byte, 0, w*h*channels)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			pixels = append(pixels, row[x*4:x*4+channels]...)
		}
	}

	return &Image{
		Width:         w,
		Height:        h,
		RowStride:     w * channels,
		HasAlpha:      hasAlpha,
		BitsPerSample: 8,
		Pixels:        pixels,
	}
}
