package medialib

import (
	"mime"
	"path"
	"strconv"
	"strings"
	"time"
)

var mimeExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"image/bmp":       ".bmp",
	"image/tiff":      ".tiff",
	"application/pdf": ".pdf",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
}

// slugify lower-cases s and collapses every run of characters outside
// [a-z0-9] into a single dash.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// fileExt returns the lower-cased extension of name, falling back to one
// derived from mimeType when name has none usable.
func fileExt(name, mimeType string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext != "" && slugify(ext[1:]) == ext[1:] {
		return ext
	}

	mt := normalizeMediaType(mimeType)
	if e, ok := mimeExtensions[mt]; ok {
		return e
	}
	if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func baseSlug(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if s := slugify(base); s != "" {
		return s
	}
	return "file"
}

// TempFileName is the name a negotiated upload is stored under before finalization.
func TempFileName(ref ModelRef, originalName, mimeType string, now time.Time, randomID string) string {
	ext := fileExt(originalName, mimeType)
	if ref.Associated() {
		return string(ref.Type) + "-" + strconv.FormatInt(ref.ID, 10) + "-" +
			strconv.FormatInt(now.Unix(), 10) + "-" + baseSlug(originalName) + ext
	}
	return randomID + "-" + baseSlug(originalName) + ext
}

// PermanentFileName computes the immutable file name of a finalized upload.
//
// Associated uploads get a deterministic name: {slug}-{id}{ext} when a slug is known,
// else {model_type}-{id}-{basename}{ext}. Everything else gets {randomID}{ext}.
func PermanentFileName(ref ModelRef, modelSlug, originalName, mimeType, randomID string) string {
	ext := fileExt(originalName, mimeType)
	if ref.Associated() {
		id := strconv.FormatInt(ref.ID, 10)
		if s := slugify(modelSlug); s != "" {
			return s + "-" + id + ext
		}
		return string(ref.Type) + "-" + id + "-" + baseSlug(originalName) + ext
	}
	return randomID + ext
}
