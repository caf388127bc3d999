package legacy

import (
	"fmt"
	"maps"
	"slices"
)

// InteractionKind distinguishes legacy interaction classes.
type InteractionKind int

const (
	InteractionIncoming InteractionKind = iota
	InteractionOutgoing
	InteractionInfo
)

func (k InteractionKind) String() string {
	switch k {
	case InteractionIncoming:
		return "incoming"
	case InteractionOutgoing:
		return "outgoing"
	case InteractionInfo:
		return "info"
	default:
		return fmt.Sprintf("InteractionKind(%d)", int(k))
	}
}

// InfoMessageType is the legacy TSInfoMessage type.
type InfoMessageType int

const (
	InfoGroupCreated               InfoMessageType = 0
	InfoGroupUpdated               InfoMessageType = 1
	InfoGroupCurrentUserLeft       InfoMessageType = 2
	InfoDisappearingMessagesUpdate InfoMessageType = 3
	InfoScreenshotNotification     InfoMessageType = 4
	InfoMediaSavedNotification     InfoMessageType = 5
	InfoCall                       InfoMessageType = 6
	InfoMessageRequestAccepted     InfoMessageType = 99
)

// callQuirkCutoffMs separates call info messages from the period when
// message-request-accepted messages were written with the call type.
const callQuirkCutoffMs = 1648000000000

// Outgoing recipient delivery states.
const (
	RecipientFailed  = 0
	RecipientSending = 1
	RecipientSkipped = 2
	RecipientSent    = 3
)

// RecipientState is one entry of an outgoing message's recipient map.
type RecipientState struct {
	State         int    `plist:"state"`
	ReadTimestamp *int64 `plist:"readTimestamp"`
}

// AttachmentInfo describes one attachment of a quoted message.
type AttachmentInfo struct {
	ContentType                  *string `plist:"contentType"`
	SourceFilename               *string `plist:"sourceFilename"`
	AttachmentID                 *string `plist:"attachmentId"`
	ThumbnailAttachmentStreamID  *string `plist:"thumbnailAttachmentStreamId"`
	ThumbnailAttachmentPointerID *string `plist:"thumbnailAttachmentPointerId"`
}

// QuotedMessage is a legacy TSQuotedMessage.
type QuotedMessage struct {
	Timestamp         uint64           `plist:"timestamp"`
	AuthorID          string           `plist:"authorId"`
	Body              *string          `plist:"body"`
	QuotedAttachments []AttachmentInfo `plist:"quotedAttachments"`
}

// LinkPreview is a legacy OWSLinkPreview.
type LinkPreview struct {
	URLString         *string `plist:"urlString"`
	Title             *string `plist:"title"`
	ImageAttachmentID *string `plist:"imageAttachmentId"`
}

// InteractionHeader is the ordering information of an interaction, enough
// to index interactions per thread without decoding them fully.
type InteractionHeader struct {
	UniqueID       string `plist:"uniqueId"`
	UniqueThreadID string `plist:"uniqueThreadId"`
	SortID         uint64 `plist:"sortId"`
	Timestamp      uint64 `plist:"timestamp"`
}

// Interaction is a legacy TSIncomingMessage, TSOutgoingMessage or
// TSInfoMessage (including its disappearing-configuration subclass).
type Interaction struct {
	Kind  InteractionKind `plist:"-"`
	Class string          `plist:"$class"`

	UniqueID            string `plist:"uniqueId"`
	UniqueThreadID      string `plist:"uniqueThreadId"`
	SortID              uint64 `plist:"sortId"`
	Timestamp           uint64 `plist:"timestamp"`
	ReceivedAtTimestamp uint64 `plist:"receivedAtTimestamp"`

	Body *string `plist:"body"`
	// Attachments is the older name of AttachmentIDs; Decode folds it in.
	Attachments              []string       `plist:"attachments"`
	AttachmentIDs            []string       `plist:"attachmentIds"`
	ExpiresInSeconds         uint32         `plist:"expiresInSeconds"`
	ExpireStartedAt          uint64         `plist:"expireStartedAt"`
	ExpiresAt                uint64         `plist:"expiresAt"`
	QuotedMessage            *QuotedMessage `plist:"quotedMessage"`
	LinkPreview              *LinkPreview   `plist:"linkPreview"`
	OpenGroupServerMessageID uint64         `plist:"openGroupServerMessageID"`
	OpenGroupInvitationName  *string        `plist:"openGroupInvitationName"`
	OpenGroupInvitationURL   *string        `plist:"openGroupInvitationURL"`
	ServerHash               *string        `plist:"serverHash"`
	IsDeleted                bool           `plist:"isDeleted"`

	// Incoming
	AuthorID string `plist:"authorId"`
	// Incoming and info messages store their read flag under "read".
	WasRead bool `plist:"read"`

	// Outgoing
	RecipientStateMap     map[string]RecipientState `plist:"recipientStateMap"`
	CustomMessage         *string                   `plist:"customMessage"`
	MostRecentFailureText *string                   `plist:"mostRecentFailureText"`

	// Info
	MessageType *InfoMessageType `plist:"messageType"`
	CallState   *int             `plist:"callState"`

	// Disappearing configuration update
	CreatedByRemoteName          *string `plist:"createdByRemoteName"`
	ConfigurationDurationSeconds uint32  `plist:"configurationDurationSeconds"`
	ConfigurationIsEnabled       bool    `plist:"configurationIsEnabled"`
}

// RecipientIDs returns the outgoing recipients in a stable order.
func (i *Interaction) RecipientIDs() []string {
	return slices.Sorted(maps.Keys(i.RecipientStateMap))
}

// InfoType returns the info message type. Only meaningful for info messages.
func (i *Interaction) InfoType() InfoMessageType {
	if i.MessageType == nil {
		return InfoGroupCreated
	}
	return *i.MessageType
}

// normalize applies the legacy quirks every reader of the record relied on.
func (i *Interaction) normalize() error {
	if i.Attachments != nil {
		i.AttachmentIDs = i.Attachments
		i.Attachments = nil
	}
	if i.Kind != InteractionInfo {
		return nil
	}
	if i.MessageType == nil {
		return fmt.Errorf("info message %s: missing messageType", i.UniqueID)
	}
	// A call message with no call state written before the cutoff is really
	// a message-request-accepted notice.
	if *i.MessageType == InfoCall && i.CallState == nil && i.Timestamp < callQuirkCutoffMs {
		t := InfoMessageRequestAccepted
		i.MessageType = &t
	}
	return nil
}

func (*Interaction) legacyObject() {}
