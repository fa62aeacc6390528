package upload

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Fit selects how an image is fitted into the target size.
type Fit string

const (
	// FitFill stretches the image to the target size.
	FitFill Fit = "fill"
	// FitContain scales the image down to fit inside the target size,
	// keeping its aspect ratio. Images are never enlarged.
	FitContain Fit = "contain"
	// FitCover scales the image to cover the target size and crops the
	// overflow.
	FitCover Fit = "cover"
)

const (
	WarningSmallImage  = "Selected image is smaller than the intended size. Image may appear pixelated or blurry."
	WarningAspectRatio = "Incorrect aspect ratio"
)

// ResizeOptions describes how images are resized before upload. Width and
// Height force a size; the Max and Min bounds only apply to the dimension
// that is not forced.
type ResizeOptions struct {
	Width     int `json:"width,omitempty" yaml:"width,omitempty"`
	Height    int `json:"height,omitempty" yaml:"height,omitempty"`
	MaxWidth  int `json:"maxWidth,omitempty" yaml:"maxWidth,omitempty"`
	MaxHeight int `json:"maxHeight,omitempty" yaml:"maxHeight,omitempty"`
	MinWidth  int `json:"minWidth,omitempty" yaml:"minWidth,omitempty"`
	MinHeight int `json:"minHeight,omitempty" yaml:"minHeight,omitempty"`
	Fit       Fit `json:"fit,omitempty" yaml:"fit,omitempty"`
	// Type is the output MIME type; empty keeps the input type.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	// Quality is the JPEG quality in (0,1]; zero means 0.8.
	Quality         float64 `json:"quality,omitempty" yaml:"quality,omitempty"`
	WarnSmallImage  bool    `json:"warnSmallImage,omitempty" yaml:"warnSmallImage,omitempty"`
	WarnAspectRatio bool    `json:"warnAspectRatio,omitempty" yaml:"warnAspectRatio,omitempty"`
}

// ResizePlan is the geometry computed by PlanResize. The image is drawn at
// the origin with the draw size onto a canvas of the canvas size.
type ResizePlan struct {
	CanvasWidth  int
	CanvasHeight int
	DrawWidth    int
	DrawHeight   int
	Warning      string
}

// PlanResize computes the output geometry of a srcW x srcH image.
func PlanResize(srcW, srcH int, opts ResizeOptions) ResizePlan {
	width, height := srcW, srcH
	if opts.Width > 0 {
		width = opts.Width
	}
	if opts.Height > 0 {
		height = opts.Height
	}
	if opts.Width == 0 && opts.MaxWidth > 0 && srcW > opts.MaxWidth {
		width = opts.MaxWidth
	}
	if opts.Width == 0 && opts.MinWidth > 0 && srcW < opts.MinWidth {
		width = opts.MinWidth
	}
	if opts.Height == 0 && opts.MaxHeight > 0 && srcH > opts.MaxHeight {
		height = opts.MaxHeight
	}
	if opts.Height == 0 && opts.MinHeight > 0 && srcH < opts.MinHeight {
		height = opts.MinHeight
	}

	plan := ResizePlan{}
	switch {
	case opts.WarnSmallImage && (srcW < width || srcH < height):
		plan.Warning = WarningSmallImage
	case opts.WarnAspectRatio && srcW > 0 && srcH > 0 &&
		math.Abs(float64(width)/float64(srcW)-float64(height)/float64(srcH)) > 1e-9:
		plan.Warning = WarningAspectRatio
	}

	if srcW <= 0 || srcH <= 0 {
		plan.CanvasWidth, plan.CanvasHeight = width, height
		plan.DrawWidth, plan.DrawHeight = width, height
		return plan
	}

	switch opts.Fit {
	case FitCover:
		plan.CanvasWidth, plan.CanvasHeight = width, height
		scale := math.Max(float64(width)/float64(srcW), float64(height)/float64(srcH))
		plan.DrawWidth = int(math.Round(float64(srcW) * scale))
		plan.DrawHeight = int(math.Round(float64(srcH) * scale))
	case FitContain:
		scale := math.Min(float64(width)/float64(srcW), float64(height)/float64(srcH))
		if scale > 1 {
			scale = 1
		}
		plan.DrawWidth = int(math.Round(float64(srcW) * scale))
		plan.DrawHeight = int(math.Round(float64(srcH) * scale))
		plan.CanvasWidth, plan.CanvasHeight = plan.DrawWidth, plan.DrawHeight
	default:
		plan.CanvasWidth, plan.CanvasHeight = width, height
		plan.DrawWidth, plan.DrawHeight = width, height
	}
	return plan
}

// ResizeImage decodes file, resizes it according to opts and encodes it
// again. The returned warning is the plan's warning.
func ResizeImage(file File, opts ResizeOptions) (File, string, error) {
	data, err := file.ReadAll()
	if err != nil {
		return File{}, "", fmt.Errorf("upload: read %s: %w", file.Name, err)
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return File{}, "", fmt.Errorf("upload: decode %s: %w", file.Name, err)
	}

	bounds := src.Bounds()
	plan := PlanResize(bounds.Dx(), bounds.Dy(), opts)
	if plan.CanvasWidth <= 0 || plan.CanvasHeight <= 0 {
		return File{}, "", fmt.Errorf("upload: invalid target size %dx%d", plan.CanvasWidth, plan.CanvasHeight)
	}
	dst := image.NewRGBA(image.Rect(0, 0, plan.CanvasWidth, plan.CanvasHeight))
	draw.CatmullRom.Scale(dst, image.Rect(0, 0, plan.DrawWidth, plan.DrawHeight), src, bounds, draw.Over, nil)

	contentType := opts.Type
	if contentType == "" {
		contentType = file.ContentType
	}
	if contentType == "" {
		contentType = "image/" + format
	}

	var buf bytes.Buffer
	switch strings.ToLower(contentType) {
	case "image/png":
		err = png.Encode(&buf, dst)
	case "image/bmp":
		err = bmp.Encode(&buf, dst)
	case "image/tiff":
		err = tiff.Encode(&buf, dst, nil)
	default:
		contentType = "image/jpeg"
		quality := opts.Quality
		if quality <= 0 || quality > 1 {
			quality = 0.8
		}
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: int(math.Round(quality * 100))})
	}
	if err != nil {
		return File{}, "", fmt.Errorf("upload: encode %s: %w", file.Name, err)
	}

	name := file.Name
	if contentType == "image/jpeg" && !isJPEGName(name) {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
	}
	return BytesFile(name, contentType, buf.Bytes()), plan.Warning, nil
}

func isJPEGName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}
