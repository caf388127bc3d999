package legacy

import (
	"errors"
	"fmt"

	"howett.net/plist"
)

// ErrUnknownClass is returned when a record's class has no decoder.
var ErrUnknownClass = errors.New("unknown legacy class")

// classAliases maps renamed or relocated class names to the name the
// decoder registry knows them by.
var classAliases = map[string]string{
	"SessionMessagingKit.SNMessageSendJob":           "SNMessageSendJob",
	"SessionMessagingKit.NotifyPNServerJob":          "NotifyPNServerJob",
	"SessionMessagingKit.MessageReceiveJob":          "MessageReceiveJob",
	"SessionMessagingKit.AttachmentUploadJob":        "AttachmentUploadJob",
	"SessionMessagingKit.AttachmentDownloadJob":      "AttachmentDownloadJob",
	"SessionSnodeKit.SnodeMessage":                   "SnodeMessage",
	"SessionServiceKit.OWSLinkPreview":               "SNLinkPreview",
	"SessionMessagingKit.ClosedGroupControlMessage":  "SNClosedGroupControlMessage",
	"SessionMessagingKit.DataExtractionNotification": "SNDataExtractionNotification",
	"SessionMessagingKit.CallMessage":                "SNCallMessage",
}

func canonicalClass(class string) string {
	if alias, ok := classAliases[class]; ok {
		return alias
	}
	return class
}

type decoderFunc func(raw []byte) (Object, error)

// decoders is the registry of top-level record classes. Every class the
// store is expected to hold must appear here.
var decoders = map[string]decoderFunc{
	"SNContact":                            decodeContact,
	"TSContactThread":                      decodeThread,
	"TSGroupThread":                        decodeThread,
	"SNOpenGroupV2":                        decodeOpenGroup,
	"OWSDisappearingMessagesConfiguration": decodeAs[DisappearingConfig],
	"ECKeyPair":                            decodeAs[KeyPair],

	"TSIncomingMessage":                             decodeInteraction(InteractionIncoming),
	"TSOutgoingMessage":                             decodeInteraction(InteractionOutgoing),
	"TSInfoMessage":                                 decodeInteraction(InteractionInfo),
	"OWSDisappearingConfigurationUpdateInfoMessage": decodeInteraction(InteractionInfo),
	"SNDataExtractionNotificationInfoMessage":       decodeInteraction(InteractionInfo),

	"TSAttachmentStream":  decodeAttachment(AttachmentStream),
	"TSAttachmentPointer": decodeAttachment(AttachmentPointer),

	"NotifyPNServerJob":     decodeAs[NotifyPushJob],
	"MessageReceiveJob":     decodeMessageReceiveJob,
	"SNMessageSendJob":      decodeMessageSendJob,
	"AttachmentUploadJob":   decodeAttachmentUploadJob,
	"AttachmentDownloadJob": decodeAs[AttachmentDownloadJob],
}

type classHeader struct {
	Class string `plist:"$class"`
}

// Decode decodes one archived record. The record's $class selects the
// decoder after alias resolution.
//
// A send job addressed to a legacy v1 open group decodes to (nil, nil):
// those jobs are no longer deliverable and are skipped.
func Decode(raw []byte) (Object, error) {
	var h classHeader
	if _, err := plist.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("decode record header: %w", err)
	}
	if h.Class == "" {
		return nil, fmt.Errorf("%w: record has no $class", ErrUnknownClass)
	}
	class := canonicalClass(h.Class)
	dec, ok := decoders[class]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, h.Class)
	}
	obj, err := dec(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", class, err)
	}
	return obj, nil
}

// DecodeValue decodes an untyped auxiliary value (numbers, string sets, data
// blobs, timestamp lists, preferences) into dst.
func DecodeValue(raw []byte, dst any) error {
	if _, err := plist.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}

// PeekInteraction decodes only the ordering header of an interaction.
func PeekInteraction(raw []byte) (InteractionHeader, error) {
	var h InteractionHeader
	if _, err := plist.Unmarshal(raw, &h); err != nil {
		return h, fmt.Errorf("decode interaction header: %w", err)
	}
	if h.UniqueID == "" || h.UniqueThreadID == "" {
		return h, fmt.Errorf("interaction header: missing uniqueId or uniqueThreadId")
	}
	return h, nil
}

func decodeAs[T any, P interface {
	*T
	Object
}](raw []byte) (Object, error) {
	var v T
	if _, err := plist.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return P(&v), nil
}

func decodeContact(raw []byte) (Object, error) {
	var c Contact
	if _, err := plist.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if c.SessionID == "" {
		return nil, errors.New("missing sessionID")
	}
	c.HasBeenBlocked = c.HasBeenBlocked || c.IsBlocked
	return &c, nil
}

func decodeThread(raw []byte) (Object, error) {
	var r threadRecord
	if _, err := plist.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	if r.UniqueID == "" {
		return nil, errors.New("missing uniqueId")
	}

	t := &Thread{
		Variant:      ThreadContact,
		UniqueID:     r.UniqueID,
		CreationDate: r.CreationDate,
		MutedUntil:   r.MutedUntilDate,
		Group:        r.GroupModel,
	}
	// hasEverHadMessage replaced shouldBeVisible and wins when present.
	switch {
	case r.HasEverHadMessage != nil:
		t.ShouldBeVisible = *r.HasEverHadMessage
	case r.ShouldBeVisible != nil:
		t.ShouldBeVisible = *r.ShouldBeVisible
	}
	if r.IsPinned != nil {
		t.IsPinned = *r.IsPinned
	}
	if r.MessageDraft != nil {
		t.MessageDraft = *r.MessageDraft
	}

	if r.GroupModel != nil {
		switch r.GroupModel.GroupType {
		case 0:
			t.Variant = ThreadClosedGroup
		case 1:
			t.Variant = ThreadOpenGroup
		default:
			return nil, fmt.Errorf("thread %s: unknown group type %d", r.UniqueID, r.GroupModel.GroupType)
		}
		if r.IsOnlyNotifyingForMentions != nil {
			t.OnlyNotifyForMentions = *r.IsOnlyNotifyingForMentions
		}
	}
	return t, nil
}

func decodeOpenGroup(raw []byte) (Object, error) {
	var o OpenGroupInfo
	if _, err := plist.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	if o.Server == "" || o.Room == "" {
		return nil, errors.New("missing server or room")
	}
	return &o, nil
}

func decodeInteraction(kind InteractionKind) decoderFunc {
	return func(raw []byte) (Object, error) {
		i := &Interaction{}
		if _, err := plist.Unmarshal(raw, i); err != nil {
			return nil, err
		}
		if i.UniqueID == "" || i.UniqueThreadID == "" {
			return nil, errors.New("missing uniqueId or uniqueThreadId")
		}
		i.Kind = kind
		if kind == InteractionIncoming && i.AuthorID == "" {
			return nil, fmt.Errorf("incoming message %s: missing authorId", i.UniqueID)
		}
		if err := i.normalize(); err != nil {
			return nil, err
		}
		return i, nil
	}
}

func decodeAttachment(kind AttachmentKind) decoderFunc {
	return func(raw []byte) (Object, error) {
		a := &Attachment{}
		if _, err := plist.Unmarshal(raw, a); err != nil {
			return nil, err
		}
		if a.ContentType == "" {
			return nil, errors.New("missing contentType")
		}
		a.Kind = kind
		return a, nil
	}
}

func decodeMessageReceiveJob(raw []byte) (Object, error) {
	var j MessageReceiveJob
	if _, err := plist.Unmarshal(raw, &j); err != nil {
		return nil, err
	}
	if len(j.Data) == 0 || j.ID == "" {
		return nil, errors.New("missing data or id")
	}
	return &j, nil
}

func decodeMessageSendJob(raw []byte) (Object, error) {
	var r messageSendJobRecord
	if _, err := plist.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	if r.Message == nil || r.ID == "" {
		return nil, errors.New("missing message or id")
	}
	dest, err := ParseDestination(r.Destination)
	if errors.Is(err, errIgnoredDestination) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.Message.resolveKind(); err != nil {
		return nil, err
	}
	return &MessageSendJob{
		Message:      r.Message,
		Destination:  dest,
		ID:           r.ID,
		FailureCount: r.FailureCount,
	}, nil
}

func decodeAttachmentUploadJob(raw []byte) (Object, error) {
	var j AttachmentUploadJob
	if _, err := plist.Unmarshal(raw, &j); err != nil {
		return nil, err
	}
	if j.AttachmentID == "" || j.MessageSendJobID == "" {
		return nil, errors.New("missing attachmentID or messageSendJobID")
	}
	if j.Message != nil {
		if err := j.Message.resolveKind(); err != nil {
			return nil, err
		}
	}
	return &j, nil
}
