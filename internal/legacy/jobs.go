package legacy

import (
	"errors"
	"fmt"
	"strings"
)

// SnodeMessage is the payload of a legacy push notification job.
type SnodeMessage struct {
	Recipient string `plist:"recipient" json:"recipient"`
	Data      string `plist:"data" json:"data"`
	TTL       uint64 `plist:"ttl" json:"ttl"`
	Timestamp uint64 `plist:"timestamp" json:"timestampMs"`
}

// NotifyPushJob is a legacy NotifyPNServerJob.
type NotifyPushJob struct {
	Message      SnodeMessage `plist:"message"`
	ID           string       `plist:"id"`
	FailureCount uint         `plist:"failureCount"`
}

// MessageReceiveJob is a legacy MessageReceiveJob.
type MessageReceiveJob struct {
	Data                     []byte  `plist:"data"`
	ServerHash               *string `plist:"serverHash"`
	OpenGroupMessageServerID *uint64 `plist:"openGroupMessageServerID"`
	OpenGroupID              *string `plist:"openGroupID"`
	IsBackgroundPoll         bool    `plist:"isBackgroundPoll"`
	ID                       string  `plist:"id"`
	FailureCount             uint    `plist:"failureCount"`
}

// IsOpenGroup reports whether the job belongs to the long-unsupported open
// group receive path.
func (j *MessageReceiveJob) IsOpenGroup() bool {
	return j.OpenGroupID != nil && j.OpenGroupMessageServerID != nil
}

// DestinationKind is the kind of a send job destination.
type DestinationKind int

const (
	DestinationContact DestinationKind = iota
	DestinationClosedGroup
	DestinationOpenGroup
)

// Destination is where a legacy send job was delivering its message.
type Destination struct {
	Kind      DestinationKind `json:"kind"`
	PublicKey string          `json:"publicKey,omitempty"`
	Room      string          `json:"room,omitempty"`
	Server    string          `json:"server,omitempty"`
}

// ThreadID returns the relational thread id the destination belongs to.
func (d Destination) ThreadID() string {
	if d.Kind == DestinationOpenGroup {
		return OpenGroupID(d.Server, d.Room)
	}
	return d.PublicKey
}

// errIgnoredDestination marks a destination that can no longer be served.
var errIgnoredDestination = errors.New("legacy v1 open group destination")

// ParseDestination parses the serialized destination of a send job:
// "contact(pk)", "closedGroup(pk)", "openGroupV2(room, server)". A legacy v1
// "openGroup(...)" destination yields errIgnoredDestination.
func ParseDestination(raw string) (Destination, error) {
	if v, ok := destinationArg(raw, "contact"); ok {
		return Destination{Kind: DestinationContact, PublicKey: v}, nil
	}
	if v, ok := destinationArg(raw, "closedGroup"); ok {
		return Destination{Kind: DestinationClosedGroup, PublicKey: v}, nil
	}
	if _, ok := destinationArg(raw, "openGroup"); ok {
		return Destination{}, errIgnoredDestination
	}
	if v, ok := destinationArg(raw, "openGroupV2"); ok {
		parts := strings.Split(v, ",")
		if len(parts) == 2 {
			room := strings.TrimSpace(parts[0])
			server := strings.TrimSpace(parts[1])
			if room != "" && server != "" {
				return Destination{Kind: DestinationOpenGroup, Room: room, Server: server}, nil
			}
		}
	}
	return Destination{}, fmt.Errorf("unrecognized destination %q", raw)
}

func destinationArg(raw, kind string) (string, bool) {
	if !strings.HasPrefix(raw, kind+"(") || !strings.HasSuffix(raw, ")") {
		return "", false
	}
	return raw[len(kind)+1 : len(raw)-1], true
}

// MessageSendJob is a legacy SNMessageSendJob.
type MessageSendJob struct {
	Message      *Message
	Destination  Destination
	ID           string
	FailureCount uint
}

type messageSendJobRecord struct {
	Message      *Message `plist:"message"`
	Destination  string   `plist:"destination"`
	ID           string   `plist:"id"`
	FailureCount uint     `plist:"failureCount"`
}

// AttachmentUploadJob is a legacy AttachmentUploadJob.
type AttachmentUploadJob struct {
	AttachmentID     string   `plist:"attachmentID"`
	ThreadID         string   `plist:"threadID"`
	Message          *Message `plist:"message"`
	MessageSendJobID string   `plist:"messageSendJobID"`
	ID               string   `plist:"id"`
	FailureCount     uint     `plist:"failureCount"`
}

// AttachmentDownloadJob is a legacy AttachmentDownloadJob.
type AttachmentDownloadJob struct {
	AttachmentID string `plist:"attachmentID"`
	MessageID    string `plist:"tsIncomingMessageID"`
	ThreadID     string `plist:"threadID"`
	ID           string `plist:"id"`
	FailureCount uint   `plist:"failureCount"`
	IsDeferred   bool   `plist:"isDeferred"`
}

func (*NotifyPushJob) legacyObject()         {}
func (*MessageReceiveJob) legacyObject()     {}
func (*MessageSendJob) legacyObject()        {}
func (*AttachmentUploadJob) legacyObject()   {}
func (*AttachmentDownloadJob) legacyObject() {}
