package validations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	domainPost "github.com/postpilot/postpilot/domains/post"
	pkgError "github.com/postpilot/postpilot/pkg/error"
	"github.com/postpilot/postpilot/pkg/utils"
)

// Platform content limits, mirroring the Facebook page constraints.
const (
	MaxTextLength     = 63206
	MaxLineBreaks     = 100
	MaxImageSize      = 4 * 1024 * 1024 * 1024 // 4GB
	MinImageDimension = 200
	MaxImageDimension = 8000
)

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

func ValidateEnqueueRequest(ctx context.Context, request domainPost.EnqueueRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Kind, validation.Required,
			validation.In(domainPost.ContentKindText, domainPost.ContentKindImage)),
		validation.Field(&request.Message, validation.Required),
		validation.Field(&request.ScheduleTime, validation.Required),
		validation.Field(&request.Recurrence,
			validation.In(domainPost.RecurrenceNone, domainPost.RecurrenceDaily,
				domainPost.RecurrenceWeekly, domainPost.RecurrenceMonthly)),
		validation.Field(&request.Link, is.URL),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

// ValidatePostContent checks a content payload against the platform rules.
// It is the admission gate: posts that fail here never enter the queue.
func ValidatePostContent(content domainPost.Content) error {
	switch c := content.(type) {
	case domainPost.TextContent:
		return validateText(c.Message)
	case domainPost.ImageContent:
		if err := validateText(c.Message); err != nil {
			return err
		}
		return validateImageFile(c.ImageRef)
	default:
		return pkgError.ValidationError("unsupported content kind")
	}
}

func validateText(message string) error {
	if strings.TrimSpace(message) == "" {
		return pkgError.ValidationError("message cannot be empty")
	}
	if len(message) > MaxTextLength {
		return pkgError.ValidationError(
			fmt.Sprintf("message exceeds maximum length of %d characters", MaxTextLength))
	}
	if strings.Count(message, "\n") > MaxLineBreaks {
		return pkgError.ValidationError("message contains too many line breaks")
	}
	return nil
}

func validateImageFile(imageRef string) error {
	if imageRef == "" {
		return pkgError.ValidationError("image_ref is required for image posts")
	}

	path := utils.MediaPath(imageRef)
	info, err := os.Stat(path)
	if err != nil {
		return pkgError.ValidationError(fmt.Sprintf("image file not found: %s", imageRef))
	}
	if info.Size() == 0 {
		return pkgError.ValidationError("image file is empty")
	}
	if info.Size() > MaxImageSize {
		return pkgError.ValidationError(
			fmt.Sprintf("image file exceeds maximum size of %s", humanize.IBytes(MaxImageSize)))
	}

	ext := strings.ToLower(filepath.Ext(imageRef))
	if !allowedImageExts[ext] {
		return pkgError.ValidationError(
			fmt.Sprintf("unsupported image format %q, allowed: .jpg, .jpeg, .png, .gif", ext))
	}

	img, err := imaging.Open(path)
	if err != nil {
		return pkgError.ValidationError(fmt.Sprintf("invalid or corrupted image file: %v", err))
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < MinImageDimension || height < MinImageDimension {
		return pkgError.ValidationError(
			fmt.Sprintf("image dimensions too small, minimum %dx%d", MinImageDimension, MinImageDimension))
	}
	if width > MaxImageDimension || height > MaxImageDimension {
		return pkgError.ValidationError(
			fmt.Sprintf("image dimensions too large, maximum %dx%d", MaxImageDimension, MaxImageDimension))
	}
	return nil
}
