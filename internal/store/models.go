package store

import "fmt"

// ThreadVariant is the kind of conversation a thread row holds.
type ThreadVariant int

const (
	ThreadContact ThreadVariant = iota
	ThreadClosedGroup
	ThreadOpenGroup
)

// GroupMemberRole tags a group_member row.
type GroupMemberRole int

const (
	RoleStandard GroupMemberRole = iota
	RoleZombie
	RoleModerator
	RoleAdmin
)

// InteractionVariant is the kind of an interaction row. Values are stable
// and stored as integers.
type InteractionVariant int

const (
	VariantStandardIncoming        InteractionVariant = 0
	VariantStandardOutgoing        InteractionVariant = 1
	VariantStandardIncomingDeleted InteractionVariant = 2

	VariantInfoClosedGroupCreated         InteractionVariant = 1000
	VariantInfoClosedGroupUpdated         InteractionVariant = 1001
	VariantInfoClosedGroupCurrentUserLeft InteractionVariant = 1002

	VariantInfoDisappearingMessagesUpdate InteractionVariant = 2000

	VariantInfoScreenshotNotification InteractionVariant = 3000
	VariantInfoMediaSavedNotification InteractionVariant = 3001

	VariantInfoMessageRequestAccepted InteractionVariant = 4000

	VariantInfoCall InteractionVariant = 5000
)

var interactionVariantNames = map[InteractionVariant]string{
	VariantStandardIncoming:               "standardIncoming",
	VariantStandardOutgoing:               "standardOutgoing",
	VariantStandardIncomingDeleted:        "standardIncomingDeleted",
	VariantInfoClosedGroupCreated:         "infoClosedGroupCreated",
	VariantInfoClosedGroupUpdated:         "infoClosedGroupUpdated",
	VariantInfoClosedGroupCurrentUserLeft: "infoClosedGroupCurrentUserLeft",
	VariantInfoDisappearingMessagesUpdate: "infoDisappearingMessagesUpdate",
	VariantInfoScreenshotNotification:     "infoScreenshotNotification",
	VariantInfoMediaSavedNotification:     "infoMediaSavedNotification",
	VariantInfoMessageRequestAccepted:     "infoMessageRequestAccepted",
	VariantInfoCall:                       "infoCall",
}

func (v InteractionVariant) String() string {
	if name, ok := interactionVariantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("InteractionVariant(%d)", int(v))
}

// RecipientDeliveryState is the delivery state of an outgoing message to one
// recipient.
type RecipientDeliveryState int

const (
	StateSending RecipientDeliveryState = iota
	StateSent
	StateFailed
	StateSkipped
)

// AttachmentVariant distinguishes voice messages from other attachments.
type AttachmentVariant int

const (
	AttachmentStandard AttachmentVariant = iota
	AttachmentVoiceMessage
)

// AttachmentState is the transfer state of an attachment.
type AttachmentState int

const (
	AttachmentPending AttachmentState = iota
	AttachmentDownloading
	AttachmentDownloaded
	AttachmentFailedDownload
	AttachmentUploading
	AttachmentUploaded
	AttachmentFailedUpload
)

// LinkPreviewVariant distinguishes open group invitations from web previews.
type LinkPreviewVariant int

const (
	LinkPreviewStandard LinkPreviewVariant = iota
	LinkPreviewOpenGroupInvitation
)

// JobVariant is the kind of work a job row resumes.
type JobVariant int

const (
	JobMessageSend JobVariant = iota
	JobMessageReceive
	JobNotifyPushServer
	JobAttachmentUpload
	JobAttachmentDownload
	JobSendReadReceipts
)

var jobVariantNames = map[JobVariant]string{
	JobMessageSend:        "messageSend",
	JobMessageReceive:     "messageReceive",
	JobNotifyPushServer:   "notifyPushServer",
	JobAttachmentUpload:   "attachmentUpload",
	JobAttachmentDownload: "attachmentDownload",
	JobSendReadReceipts:   "sendReadReceipts",
}

func (v JobVariant) String() string {
	if name, ok := jobVariantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("JobVariant(%d)", int(v))
}

// JobBehaviour says whether a job runs once or keeps recurring.
type JobBehaviour int

const (
	JobRunOnce JobBehaviour = iota
	JobRecurring
)

// ProcessRecordVariant is the kind of control message a process record
// protects against reprocessing.
type ProcessRecordVariant int

const (
	ProcessLegacyEntry ProcessRecordVariant = iota
	ProcessReadReceipt
	ProcessTypingIndicator
	ProcessClosedGroupControlMessage
	ProcessDataExtractionNotification
	ProcessExpirationTimerUpdate
	ProcessConfigurationMessage
	ProcessUnsendRequest
	ProcessMessageRequestResponse
	ProcessCall
)

// Profile is a profile row.
type Profile struct {
	ID                     string
	Name                   string
	Nickname               *string
	ProfilePictureURL      *string
	ProfilePictureFileName *string
	ProfileEncryptionKey   []byte
}

// Contact is a contact row.
type Contact struct {
	ID             string
	IsTrusted      bool
	IsApproved     bool
	IsBlocked      bool
	DidApproveMe   bool
	HasBeenBlocked bool
}

// Thread is a thread row.
type Thread struct {
	ID                    string
	Variant               ThreadVariant
	CreationDateTimestamp float64
	ShouldBeVisible       bool
	IsPinned              bool
	MessageDraft          *string
	MutedUntilTimestamp   *float64
	OnlyNotifyForMentions bool
}

// DisappearingConfig is a disappearing_messages_configuration row.
type DisappearingConfig struct {
	ThreadID        string
	IsEnabled       bool
	DurationSeconds float64
}

// ClosedGroup is a closed_group row.
type ClosedGroup struct {
	ThreadID           string
	Name               string
	FormationTimestamp float64
}

// ClosedGroupKeyPair is a closed_group_key_pair row.
type ClosedGroupKeyPair struct {
	ThreadID          string
	PublicKey         []byte
	SecretKey         []byte
	ReceivedTimestamp float64
}

// GroupMember is a group_member row.
type GroupMember struct {
	GroupID   string
	ProfileID string
	Role      GroupMemberRole
}

// OpenGroup is an open_group row.
type OpenGroup struct {
	ThreadID             string
	Server               string
	RoomToken            string
	PublicKey            string
	Name                 string
	IsActive             bool
	RoomDescription      *string
	ImageID              *string
	ImageData            []byte
	UserCount            int64
	InfoUpdates          int64
	LastMessageServerID  *int64
	LastDeletionServerID *int64
}

// Interaction is an interaction row. ID is assigned on insert.
type Interaction struct {
	ID                       int64
	ServerHash               *string
	MessageUUID              *string
	ThreadID                 string
	AuthorID                 string
	Variant                  InteractionVariant
	Body                     *string
	TimestampMs              int64
	ReceivedAtTimestampMs    int64
	WasRead                  bool
	HasMention               bool
	ExpiresInSeconds         *float64
	ExpiresStartedAtMs       *float64
	LinkPreviewURL           *string
	OpenGroupServerMessageID *int64
}

// RecipientState is a recipient_state row.
type RecipientState struct {
	InteractionID         int64
	RecipientID           string
	State                 RecipientDeliveryState
	ReadTimestampMs       *int64
	MostRecentFailureText *string
}

// Attachment is an attachment row.
type Attachment struct {
	ID                    string
	ServerID              *string
	Variant               AttachmentVariant
	State                 AttachmentState
	ContentType           string
	ByteCount             int64
	CreationTimestamp     *float64
	SourceFilename        *string
	DownloadURL           *string
	LocalRelativeFilePath *string
	Width                 *int64
	Height                *int64
	Duration              *float64
	IsValid               bool
	EncryptionKey         []byte
	Digest                []byte
	Caption               *string
}

// Quote is a quote row.
type Quote struct {
	InteractionID int64
	AuthorID      string
	TimestampMs   int64
	Body          *string
	AttachmentID  *string
}

// LinkPreview is a link_preview row.
type LinkPreview struct {
	URL          string
	Timestamp    float64
	Variant      LinkPreviewVariant
	Title        *string
	AttachmentID *string
}

// Job is a job row. Details is the JSON payload the job runner decodes.
type Job struct {
	ID               int64
	FailureCount     int64
	Variant          JobVariant
	Behaviour        JobBehaviour
	NextRunTimestamp float64
	ThreadID         *string
	InteractionID    *int64
	Details          []byte
}

// ProcessRecord is a control_message_process_record row.
type ProcessRecord struct {
	ThreadID                  string
	Variant                   ProcessRecordVariant
	TimestampMs               int64
	ServerExpirationTimestamp *float64
}
