package legacy

import (
	"fmt"
	"time"
)

// Object is a decoded legacy record. The set of implementations is closed.
type Object interface {
	legacyObject()
}

// AES256Key wraps a profile picture encryption key.
type AES256Key struct {
	KeyData []byte `plist:"keyData"`
}

// Contact is a legacy SNContact.
type Contact struct {
	SessionID              string     `plist:"sessionID"`
	Name                   *string    `plist:"displayName"`
	Nickname               *string    `plist:"nickname"`
	ProfilePictureURL      *string    `plist:"profilePictureURL"`
	ProfilePictureFileName *string    `plist:"profilePictureFileName"`
	ProfileEncryptionKey   *AES256Key `plist:"profilePictureEncryptionKey"`
	IsTrusted              bool       `plist:"isTrusted"`
	IsApproved             bool       `plist:"isApproved"`
	IsBlocked              bool       `plist:"isBlocked"`
	DidApproveMe           bool       `plist:"didApproveMe"`
	HasBeenBlocked         bool       `plist:"hasBeenBlocked"`
}

// ThreadVariant distinguishes the kinds of legacy thread.
type ThreadVariant int

const (
	ThreadContact ThreadVariant = iota
	ThreadClosedGroup
	ThreadOpenGroup
)

func (v ThreadVariant) String() string {
	switch v {
	case ThreadContact:
		return "contact"
	case ThreadClosedGroup:
		return "closedGroup"
	case ThreadOpenGroup:
		return "openGroup"
	default:
		return fmt.Sprintf("ThreadVariant(%d)", int(v))
	}
}

// GroupModel is the membership record carried by group threads.
type GroupModel struct {
	GroupID   []byte   `plist:"groupId"`
	GroupType int      `plist:"groupType"`
	GroupName *string  `plist:"groupName"`
	MemberIDs []string `plist:"groupMemberIds"`
	AdminIDs  []string `plist:"groupAdminIds"`
}

// Name returns the group name, defaulting to "Group".
func (g *GroupModel) Name() string {
	if g.GroupName == nil || *g.GroupName == "" {
		return "Group"
	}
	return *g.GroupName
}

// Thread is a legacy TSContactThread or TSGroupThread.
type Thread struct {
	Variant               ThreadVariant
	UniqueID              string
	CreationDate          time.Time
	ShouldBeVisible       bool
	IsPinned              bool
	MutedUntil            *time.Time
	MessageDraft          string
	Group                 *GroupModel
	OnlyNotifyForMentions bool
}

type threadRecord struct {
	UniqueID                   string      `plist:"uniqueId"`
	CreationDate               time.Time   `plist:"creationDate"`
	ShouldBeVisible            *bool       `plist:"shouldBeVisible"`
	HasEverHadMessage          *bool       `plist:"hasEverHadMessage"`
	IsPinned                   *bool       `plist:"isPinned"`
	MutedUntilDate             *time.Time  `plist:"mutedUntilDate"`
	MessageDraft               *string     `plist:"messageDraft"`
	GroupModel                 *GroupModel `plist:"groupModel"`
	IsOnlyNotifyingForMentions *bool       `plist:"isOnlyNotifyingForMentions"`
}

// OpenGroupInfo is a legacy SNOpenGroupV2 record.
type OpenGroupInfo struct {
	Server    string  `plist:"server"`
	Room      string  `plist:"room"`
	Name      string  `plist:"name"`
	PublicKey string  `plist:"publicKey"`
	ImageID   *string `plist:"imageID"`
}

// ID returns the open group identifier, "server.room".
func (o *OpenGroupInfo) ID() string {
	return OpenGroupID(o.Server, o.Room)
}

// DisappearingConfig is a legacy OWSDisappearingMessagesConfiguration.
type DisappearingConfig struct {
	UniqueID        string `plist:"uniqueId"`
	IsEnabled       bool   `plist:"enabled"`
	DurationSeconds uint32 `plist:"durationSeconds"`
}

// KeyPair is a legacy ECKeyPair.
type KeyPair struct {
	PublicKey  []byte `plist:"TSECKeyPairPublicKey" json:"publicKey"`
	PrivateKey []byte `plist:"TSECKeyPairPrivateKey" json:"privateKey"`
}

// AttachmentKind distinguishes downloaded streams from remote pointers.
type AttachmentKind int

const (
	AttachmentStream AttachmentKind = iota
	AttachmentPointer
)

// Pointer download states.
const (
	PointerEnqueued    = 0
	PointerDownloading = 1
	PointerFailed      = 2
)

// Attachment types.
const (
	AttachmentTypeDefault      = 0
	AttachmentTypeVoiceMessage = 1
)

// Size is a serialized CGSize.
type Size struct {
	Width  float64 `plist:"width"`
	Height float64 `plist:"height"`
}

// Attachment is a legacy TSAttachmentStream or TSAttachmentPointer. Fields
// specific to one kind are zero for the other.
type Attachment struct {
	Kind           AttachmentKind `plist:"-"`
	ServerID       uint64         `plist:"serverId"`
	EncryptionKey  []byte         `plist:"encryptionKey"`
	ContentType    string         `plist:"contentType"`
	IsDownloaded   bool           `plist:"isDownloaded"`
	AttachmentType int            `plist:"attachmentType"`
	DownloadURL    string         `plist:"downloadURL"`
	ByteCount      uint32         `plist:"byteCount"`
	SourceFilename *string        `plist:"sourceFilename"`
	Caption        *string        `plist:"caption"`
	AlbumMessageID *string        `plist:"albumMessageId"`
	Digest         []byte         `plist:"digest"`

	// Pointer
	State     int   `plist:"state"`
	MediaSize *Size `plist:"mediaSize"`

	// Stream
	IsUploaded                 bool       `plist:"isUploaded"`
	CreationTimestamp          *time.Time `plist:"creationTimestamp"`
	LocalRelativeFilePath      *string    `plist:"localRelativeFilePath"`
	CachedImageWidth           *float64   `plist:"cachedImageWidth"`
	CachedImageHeight          *float64   `plist:"cachedImageHeight"`
	CachedAudioDurationSeconds *float64   `plist:"cachedAudioDurationSeconds"`
	IsValidImageCached         *bool      `plist:"isValidImageCached"`
	IsValidVideoCached         *bool      `plist:"isValidVideoCached"`
}

func (*Contact) legacyObject()            {}
func (*Thread) legacyObject()             {}
func (*OpenGroupInfo) legacyObject()      {}
func (*DisappearingConfig) legacyObject() {}
func (*KeyPair) legacyObject()            {}
func (*Attachment) legacyObject()         {}
