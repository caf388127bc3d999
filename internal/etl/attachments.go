package etl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sessionvault/legacymigrate/internal/legacy"
	"github.com/sessionvault/legacymigrate/internal/store"
	"github.com/sessionvault/legacymigrate/internal/textutil"
)

// attachment returns the legacy attachment stored under key, or nil when
// there is none. Lookups are cached for the whole import.
func (r *run) attachment(key string) (*legacy.Attachment, error) {
	if a, ok := r.attachments[key]; ok {
		return a, nil
	}
	obj, found, err := r.decodeRecord(legacy.AttachmentCollection, key)
	if err != nil {
		return nil, err
	}
	var a *legacy.Attachment
	if found {
		var ok bool
		if a, ok = obj.(*legacy.Attachment); !ok {
			return nil, fmt.Errorf("attachment %s: unexpected record %T", key, obj)
		}
	}
	r.attachments[key] = a
	return a, nil
}

// attachmentFor returns the id of the attachment row for a legacy attachment
// key, writing the row the first time the key is referenced. It returns nil
// when the legacy attachment no longer exists; callers decide whether that
// is fatal.
func (r *run) attachmentFor(key string, outgoing bool) (*string, error) {
	if id, ok := r.ids.attachments[key]; ok {
		return &id, nil
	}
	a, err := r.attachment(key)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}

	row := buildAttachment(uuid.NewString(), a, outgoing)
	if err := r.tx.InsertAttachment(row); err != nil {
		return nil, err
	}
	r.ids.attachments[key] = row.ID
	r.summary.Attachments++
	return &row.ID, nil
}

func buildAttachment(id string, a *legacy.Attachment, outgoing bool) *store.Attachment {
	row := &store.Attachment{
		ID:             id,
		Variant:        store.AttachmentStandard,
		State:          attachmentState(a, outgoing),
		ContentType:    a.ContentType,
		ByteCount:      int64(a.ByteCount),
		SourceFilename: textutil.CleanOptional(a.SourceFilename),
		EncryptionKey:  a.EncryptionKey,
		Caption:        textutil.CleanOptional(a.Caption),
	}
	if a.AttachmentType == legacy.AttachmentTypeVoiceMessage {
		row.Variant = store.AttachmentVoiceMessage
	}
	if a.ServerID != 0 {
		serverID := strconv.FormatUint(a.ServerID, 10)
		row.ServerID = &serverID
	}
	if a.DownloadURL != "" {
		downloadURL := a.DownloadURL
		row.DownloadURL = &downloadURL
	}

	var width, height float64
	switch a.Kind {
	case legacy.AttachmentStream:
		if a.CreationTimestamp != nil {
			created := unixSeconds(*a.CreationTimestamp)
			row.CreationTimestamp = &created
		}
		if a.LocalRelativeFilePath != nil {
			path := strings.TrimPrefix(*a.LocalRelativeFilePath, "/")
			row.LocalRelativeFilePath = &path
		}
		row.Digest = a.Digest
		if a.CachedImageWidth != nil {
			width = *a.CachedImageWidth
		}
		if a.CachedImageHeight != nil {
			height = *a.CachedImageHeight
		}
	case legacy.AttachmentPointer:
		if a.MediaSize != nil {
			width, height = a.MediaSize.Width, a.MediaSize.Height
		}
	}
	if width != 0 || height != 0 {
		w, h := int64(width), int64(height)
		row.Width, row.Height = &w, &h
	}

	row.IsValid, row.Duration = attachmentValidity(a)
	return row
}

func attachmentState(a *legacy.Attachment, outgoing bool) store.AttachmentState {
	switch {
	case a.Kind == legacy.AttachmentPointer && a.State == legacy.PointerFailed:
		return store.AttachmentFailedDownload
	case a.Kind == legacy.AttachmentPointer:
		return store.AttachmentPending
	case outgoing && a.IsUploaded:
		return store.AttachmentUploaded
	case outgoing:
		return store.AttachmentPending
	default:
		return store.AttachmentDownloaded
	}
}

// attachmentValidity reports whether a downloaded file is usable and, for
// audio, its duration. Pointers have no file yet and are never valid.
func attachmentValidity(a *legacy.Attachment) (bool, *float64) {
	if a.Kind == legacy.AttachmentPointer {
		return false, nil
	}
	if a.LocalRelativeFilePath == nil || *a.LocalRelativeFilePath == "" {
		return false, nil
	}
	switch {
	case isAudio(a.ContentType):
		if d := a.CachedAudioDurationSeconds; d != nil && *d > 0 {
			duration := *d
			return true, &duration
		}
		return true, nil
	case isVideo(a.ContentType):
		if a.IsValidVideoCached != nil {
			return *a.IsValidVideoCached, nil
		}
		return true, nil
	case isImage(a.ContentType):
		if a.IsValidImageCached != nil {
			return *a.IsValidImageCached, nil
		}
		return true, nil
	default:
		return true, nil
	}
}

func isAudio(contentType string) bool { return hasMediaType(contentType, "audio/") }
func isVideo(contentType string) bool { return hasMediaType(contentType, "video/") }
func isImage(contentType string) bool { return hasMediaType(contentType, "image/") }

func hasMediaType(contentType, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), prefix)
}
