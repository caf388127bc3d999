package legacy

import "fmt"

// MessageKind is the concrete type of a message archived inside a send or
// upload job.
type MessageKind int

const (
	MessageVisible MessageKind = iota
	MessageExpirationTimerUpdate
	MessageReadReceipt
	MessageTypingIndicator
	MessageClosedGroupControl
	MessageDataExtractionNotification
	MessageConfiguration
	MessageUnsendRequest
	MessageRequestResponse
	MessageCall
)

var messageKindNames = map[MessageKind]string{
	MessageVisible:                    "visibleMessage",
	MessageExpirationTimerUpdate:      "expirationTimerUpdate",
	MessageReadReceipt:                "readReceipt",
	MessageTypingIndicator:            "typingIndicator",
	MessageClosedGroupControl:         "closedGroupControlMessage",
	MessageDataExtractionNotification: "dataExtractionNotification",
	MessageConfiguration:              "configurationMessage",
	MessageUnsendRequest:              "unsendRequest",
	MessageRequestResponse:            "messageRequestResponse",
	MessageCall:                       "callMessage",
}

func (k MessageKind) String() string {
	if name, ok := messageKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("MessageKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler so job details carry the
// kind by name.
func (k MessageKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// messageKinds maps the canonical class of an archived message to its kind.
var messageKinds = map[string]MessageKind{
	"SNVisibleMessage":             MessageVisible,
	"SNExpirationTimerUpdate":      MessageExpirationTimerUpdate,
	"SNReadReceipt":                MessageReadReceipt,
	"SNTypingIndicator":            MessageTypingIndicator,
	"SNClosedGroupControlMessage":  MessageClosedGroupControl,
	"SNDataExtractionNotification": MessageDataExtractionNotification,
	"SNConfigurationMessage":       MessageConfiguration,
	"SNUnsendRequest":              MessageUnsendRequest,
	"SNMessageRequestResponse":     MessageRequestResponse,
	"SNCallMessage":                MessageCall,
}

// Quote is the quote carried by a visible message.
type Quote struct {
	Timestamp    *uint64 `plist:"timestamp" json:"timestampMs,omitempty"`
	AuthorID     *string `plist:"authorId" json:"authorId,omitempty"`
	Body         *string `plist:"body" json:"body,omitempty"`
	AttachmentID *string `plist:"attachmentID" json:"attachmentId,omitempty"`
}

// MessageLinkPreview is the link preview carried by a visible message.
type MessageLinkPreview struct {
	Title        *string `plist:"title" json:"title,omitempty"`
	URL          *string `plist:"urlString" json:"url,omitempty"`
	AttachmentID *string `plist:"attachmentID" json:"attachmentId,omitempty"`
}

// MessageProfile is the sender profile carried by a visible message.
type MessageProfile struct {
	DisplayName       *string `plist:"displayName" json:"displayName,omitempty"`
	ProfileKey        []byte  `plist:"profileKey" json:"profileKey,omitempty"`
	ProfilePictureURL *string `plist:"profilePictureURL" json:"profilePictureUrl,omitempty"`
}

// OpenGroupInvitation is an invitation carried by a visible message.
type OpenGroupInvitation struct {
	Name *string `plist:"name" json:"name,omitempty"`
	URL  *string `plist:"url" json:"url,omitempty"`
}

// KeyPairWrapper is an encrypted key pair for one closed group member.
type KeyPairWrapper struct {
	PublicKey        *string `plist:"publicKey" json:"publicKey,omitempty"`
	EncryptedKeyPair []byte  `plist:"encryptedKeyPair" json:"encryptedKeyPair,omitempty"`
}

// ConfigurationClosedGroup is a closed group listed in a configuration message.
type ConfigurationClosedGroup struct {
	PublicKey         string   `plist:"publicKey" json:"publicKey"`
	Name              string   `plist:"name" json:"name"`
	EncryptionKeyPair *KeyPair `plist:"encryptionKeyPair" json:"encryptionKeyPair,omitempty"`
	Members           []string `plist:"members" json:"members"`
	Admins            []string `plist:"admins" json:"admins"`
	ExpirationTimer   uint32   `plist:"expirationTimer" json:"expirationTimer"`
}

// ConfigurationContact is a contact listed in a configuration message.
type ConfigurationContact struct {
	PublicKey         string  `plist:"publicKey" json:"publicKey"`
	DisplayName       string  `plist:"displayName" json:"displayName"`
	ProfilePictureURL *string `plist:"profilePictureURL" json:"profilePictureUrl,omitempty"`
	ProfileKey        []byte  `plist:"profileKey" json:"profileKey,omitempty"`
	IsApproved        bool    `plist:"isApproved" json:"isApproved"`
	IsBlocked         bool    `plist:"isBlocked" json:"isBlocked"`
	DidApproveMe      bool    `plist:"didApproveMe" json:"didApproveMe"`
}

// Message is a message archived inside a job. The fields used depend on
// Kind; the rest stay zero.
type Message struct {
	Kind  MessageKind `plist:"-" json:"kind"`
	Class string      `plist:"$class" json:"-"`

	ID                       *string `plist:"id" json:"id,omitempty"`
	ThreadID                 *string `plist:"threadID" json:"threadId,omitempty"`
	SentTimestamp            *uint64 `plist:"sentTimestamp" json:"sentTimestampMs,omitempty"`
	ReceivedTimestamp        *uint64 `plist:"receivedTimestamp" json:"receivedTimestampMs,omitempty"`
	Recipient                *string `plist:"recipient" json:"recipient,omitempty"`
	Sender                   *string `plist:"sender" json:"sender,omitempty"`
	GroupPublicKey           *string `plist:"groupPublicKey" json:"groupPublicKey,omitempty"`
	OpenGroupServerMessageID *uint64 `plist:"openGroupServerMessageID" json:"openGroupServerMessageId,omitempty"`
	ServerHash               *string `plist:"serverHash" json:"serverHash,omitempty"`

	// Visible message
	SyncTarget          *string              `plist:"syncTarget" json:"syncTarget,omitempty"`
	Text                *string              `plist:"body" json:"text,omitempty"`
	AttachmentIDs       []string             `plist:"attachments" json:"attachmentIds,omitempty"`
	Quote               *Quote               `plist:"quote" json:"quote,omitempty"`
	LinkPreview         *MessageLinkPreview  `plist:"linkPreview" json:"linkPreview,omitempty"`
	Profile             *MessageProfile      `plist:"profile" json:"profile,omitempty"`
	OpenGroupInvitation *OpenGroupInvitation `plist:"openGroupInvitation" json:"openGroupInvitation,omitempty"`

	// Expiration timer update
	DurationSeconds *uint32 `plist:"durationSeconds" json:"durationSeconds,omitempty"`

	// Read receipt
	MessageTimestamps []uint64 `plist:"messageTimestamps" json:"timestamps,omitempty"`

	// Typing indicator
	Action *int `plist:"action" json:"action,omitempty"`

	// Closed group control, data extraction and call messages share "kind".
	RawKind           *string          `plist:"kind" json:"rawKind,omitempty"`
	PublicKey         []byte           `plist:"publicKey" json:"publicKey,omitempty"`
	Wrappers          []KeyPairWrapper `plist:"wrappers" json:"wrappers,omitempty"`
	Name              *string          `plist:"name" json:"name,omitempty"`
	EncryptionKeyPair *KeyPair         `plist:"encryptionKeyPair" json:"encryptionKeyPair,omitempty"`
	Members           [][]byte         `plist:"members" json:"members,omitempty"`
	Admins            [][]byte         `plist:"admins" json:"admins,omitempty"`
	ExpirationTimer   *uint32          `plist:"expirationTimer" json:"expirationTimer,omitempty"`

	// Data extraction notification and unsend request
	Timestamp *uint64 `plist:"timestamp" json:"timestampMs,omitempty"`
	Author    *string `plist:"author" json:"author,omitempty"`

	// Configuration message
	ClosedGroups      []ConfigurationClosedGroup `plist:"closedGroups" json:"closedGroups,omitempty"`
	OpenGroups        []string                   `plist:"openGroups" json:"openGroups,omitempty"`
	DisplayName       *string                    `plist:"displayName" json:"displayName,omitempty"`
	ProfilePictureURL *string                    `plist:"profilePictureURL" json:"profilePictureUrl,omitempty"`
	ProfileKey        []byte                     `plist:"profileKey" json:"profileKey,omitempty"`
	Contacts          []ConfigurationContact     `plist:"contacts" json:"contacts,omitempty"`

	// Message request response
	IsApproved *bool `plist:"isApproved" json:"isApproved,omitempty"`

	// Call message
	UUID            *string  `plist:"uuid" json:"uuid,omitempty"`
	SDPs            []string `plist:"sdps" json:"sdps,omitempty"`
	SDPMLineIndexes []uint32 `plist:"sdpMLineIndexes" json:"sdpMLineIndexes,omitempty"`
	SDPMids         []string `plist:"sdpMids" json:"sdpMids,omitempty"`
}

// resolveKind sets Kind from the archived class.
func (m *Message) resolveKind() error {
	kind, ok := messageKinds[canonicalClass(m.Class)]
	if !ok {
		return fmt.Errorf("%w: message class %q", ErrUnknownClass, m.Class)
	}
	m.Kind = kind
	return nil
}
