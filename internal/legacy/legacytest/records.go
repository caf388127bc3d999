package legacytest

import (
	"testing"
	"time"

	"howett.net/plist"

	"github.com/sessionvault/legacymigrate/internal/legacy"
)

// Record is an archived legacy object: a dictionary with a "$class" entry.
// Values must be plist-encodable and never nil.
type Record map[string]any

// With returns a copy of r with key set to v.
func (r Record) With(key string, v any) Record {
	out := make(Record, len(r)+1)
	for k, val := range r {
		out[k] = val
	}
	out[key] = v
	return out
}

// Without returns a copy of r with key removed.
func (r Record) Without(key string) Record {
	out := make(Record, len(r))
	for k, val := range r {
		if k != key {
			out[k] = val
		}
	}
	return out
}

// Marshal encodes rec as a binary plist.
func Marshal(rec Record) ([]byte, error) {
	return plist.Marshal(map[string]any(rec), plist.BinaryFormat)
}

// Encode is Marshal for tests.
func Encode(t testing.TB, rec Record) []byte {
	t.Helper()
	raw, err := Marshal(rec)
	if err != nil {
		t.Fatalf("encode record: %v", err)
	}
	return raw
}

// Epoch is the creation date used by builders.
var Epoch = time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)

// Contact builds an SNContact.
func Contact(sessionID string) Record {
	return Record{
		"$class":      "SNContact",
		"sessionID":   sessionID,
		"displayName": "user " + sessionID,
		"isTrusted":   false,
		"isApproved":  false,
		"isBlocked":   false,
	}
}

// ContactThread builds a TSContactThread for publicKey.
func ContactThread(publicKey string) Record {
	return Record{
		"$class":          "TSContactThread",
		"uniqueId":        legacy.ContactThreadKey(publicKey),
		"creationDate":    Epoch,
		"shouldBeVisible": true,
		"isPinned":        false,
	}
}

// GroupModel builds a TSGroupModel. groupType 0 is a closed group, 1 an open group.
func GroupModel(groupID []byte, groupType int, name string, members, admins []string) Record {
	if members == nil {
		members = []string{}
	}
	if admins == nil {
		admins = []string{}
	}
	return Record{
		"$class":         "TSGroupModel",
		"groupId":        groupID,
		"groupType":      groupType,
		"groupName":      name,
		"groupMemberIds": members,
		"groupAdminIds":  admins,
	}
}

// ClosedGroupThread builds a TSGroupThread for a closed group.
func ClosedGroupThread(publicKey, name string, members, admins []string) Record {
	return Record{
		"$class":          "TSGroupThread",
		"uniqueId":        legacy.ClosedGroupThreadKey(publicKey),
		"creationDate":    Epoch,
		"shouldBeVisible": true,
		"groupModel":      GroupModel([]byte(legacy.ClosedGroupIDPrefix+publicKey), 0, name, members, admins),
	}
}

// OpenGroupThreadKey returns the legacy key used for an open group thread.
func OpenGroupThreadKey(server, room string) string {
	return legacy.GroupThreadPrefix + "opengroup-" + legacy.OpenGroupID(server, room)
}

// OpenGroupThread builds a TSGroupThread for an open group.
func OpenGroupThread(server, room, name string) Record {
	return Record{
		"$class":          "TSGroupThread",
		"uniqueId":        OpenGroupThreadKey(server, room),
		"creationDate":    Epoch,
		"shouldBeVisible": true,
		"groupModel":      GroupModel([]byte(legacy.OpenGroupID(server, room)), 1, name, nil, nil),
	}
}

// OpenGroup builds an SNOpenGroupV2.
func OpenGroup(server, room, name, publicKey string) Record {
	return Record{
		"$class":    "SNOpenGroupV2",
		"server":    server,
		"room":      room,
		"name":      name,
		"publicKey": publicKey,
	}
}

// DisappearingConfig builds an OWSDisappearingMessagesConfiguration.
func DisappearingConfig(threadKey string, enabled bool, durationSeconds uint32) Record {
	return Record{
		"$class":          "OWSDisappearingMessagesConfiguration",
		"uniqueId":        threadKey,
		"enabled":         enabled,
		"durationSeconds": durationSeconds,
	}
}

// KeyPair builds an ECKeyPair.
func KeyPair(publicKey, privateKey []byte) Record {
	return Record{
		"$class":                "ECKeyPair",
		"TSECKeyPairPublicKey":  publicKey,
		"TSECKeyPairPrivateKey": privateKey,
	}
}

func message(class, id, threadKey string, sortID, timestamp uint64) Record {
	return Record{
		"$class":                   class,
		"uniqueId":                 id,
		"uniqueThreadId":           threadKey,
		"sortId":                   sortID,
		"timestamp":                timestamp,
		"receivedAtTimestamp":      timestamp,
		"attachmentIds":            []string{},
		"expiresInSeconds":         uint32(0),
		"expireStartedAt":          uint64(0),
		"expiresAt":                uint64(0),
		"openGroupServerMessageID": uint64(0),
	}
}

// IncomingMessage builds a TSIncomingMessage.
func IncomingMessage(id, threadKey string, sortID, timestamp uint64, authorID, body string) Record {
	return message("TSIncomingMessage", id, threadKey, sortID, timestamp).
		With("authorId", authorID).
		With("body", body).
		With("read", false)
}

// OutgoingMessage builds a TSOutgoingMessage with one recipient state per
// entry of states.
func OutgoingMessage(id, threadKey string, sortID, timestamp uint64, body string, states map[string]int) Record {
	stateMap := make(map[string]any, len(states))
	for recipient, state := range states {
		stateMap[recipient] = Record{"$class": "TSOutgoingMessageRecipientState", "state": state}
	}
	return message("TSOutgoingMessage", id, threadKey, sortID, timestamp).
		With("body", body).
		With("recipientStateMap", stateMap)
}

// InfoMessage builds a TSInfoMessage of the given type.
func InfoMessage(id, threadKey string, sortID, timestamp uint64, messageType legacy.InfoMessageType) Record {
	return message("TSInfoMessage", id, threadKey, sortID, timestamp).
		With("messageType", int(messageType)).
		With("read", true)
}

// DisappearingUpdateMessage builds an
// OWSDisappearingConfigurationUpdateInfoMessage.
func DisappearingUpdateMessage(id, threadKey string, sortID, timestamp uint64, remoteName string, enabled bool, durationSeconds uint32) Record {
	return InfoMessage(id, threadKey, sortID, timestamp, legacy.InfoDisappearingMessagesUpdate).
		With("$class", "OWSDisappearingConfigurationUpdateInfoMessage").
		With("createdByRemoteName", remoteName).
		With("configurationIsEnabled", enabled).
		With("configurationDurationSeconds", durationSeconds)
}

// QuotedMessage builds a TSQuotedMessage. Each attachment id becomes one
// quoted attachment entry.
func QuotedMessage(timestamp uint64, authorID, body string, attachmentIDs ...string) Record {
	infos := make([]any, 0, len(attachmentIDs))
	for _, id := range attachmentIDs {
		infos = append(infos, Record{
			"$class":       "OWSAttachmentInfo",
			"contentType":  "image/jpeg",
			"attachmentId": id,
		})
	}
	return Record{
		"$class":            "TSQuotedMessage",
		"timestamp":         timestamp,
		"authorId":          authorID,
		"body":              body,
		"quotedAttachments": infos,
	}
}

// LinkPreview builds an OWSLinkPreview. imageAttachmentID may be empty.
func LinkPreview(url, title, imageAttachmentID string) Record {
	r := Record{
		"$class":    "SessionServiceKit.OWSLinkPreview",
		"urlString": url,
		"title":     title,
	}
	if imageAttachmentID != "" {
		r["imageAttachmentId"] = imageAttachmentID
	}
	return r
}

func attachment(class, contentType string) Record {
	return Record{
		"$class":         class,
		"serverId":       uint64(0),
		"contentType":    contentType,
		"attachmentType": 0,
		"downloadURL":    "",
		"byteCount":      uint32(1024),
	}
}

// AttachmentStream builds a TSAttachmentStream stored at path.
func AttachmentStream(contentType, path string, uploaded bool) Record {
	return attachment("TSAttachmentStream", contentType).
		With("isDownloaded", true).
		With("isUploaded", uploaded).
		With("creationTimestamp", Epoch).
		With("localRelativeFilePath", path)
}

// AttachmentPointer builds a TSAttachmentPointer in the given download state.
func AttachmentPointer(contentType, downloadURL string, state int) Record {
	return attachment("TSAttachmentPointer", contentType).
		With("downloadURL", downloadURL).
		With("state", state).
		With("mediaSize", Record{"width": float64(0), "height": float64(0)})
}

// SnodeMessage builds the payload of a push notification job.
func SnodeMessage(recipient, data string, ttl, timestamp uint64) Record {
	return Record{
		"$class":    "SessionSnodeKit.SnodeMessage",
		"recipient": recipient,
		"data":      data,
		"ttl":       ttl,
		"timestamp": timestamp,
	}
}

// NotifyPushJob builds a NotifyPNServerJob.
func NotifyPushJob(id string, msg Record) Record {
	return Record{
		"$class":       "SessionMessagingKit.NotifyPNServerJob",
		"message":      msg,
		"id":           id,
		"failureCount": uint(0),
	}
}

// MessageReceiveJob builds a MessageReceiveJob around a serialized envelope.
func MessageReceiveJob(id string, data []byte) Record {
	return Record{
		"$class":           "SessionMessagingKit.MessageReceiveJob",
		"data":             data,
		"id":               id,
		"isBackgroundPoll": false,
		"failureCount":     uint(0),
	}
}

// VisibleMessage builds an archived SNVisibleMessage.
func VisibleMessage(sentTimestamp uint64, recipient, body string) Record {
	return Record{
		"$class":        "SNVisibleMessage",
		"sentTimestamp": sentTimestamp,
		"recipient":     recipient,
		"body":          body,
	}
}

// ExpirationTimerUpdate builds an archived SNExpirationTimerUpdate.
func ExpirationTimerUpdate(sentTimestamp uint64, recipient string, durationSeconds uint32) Record {
	return Record{
		"$class":          "SNExpirationTimerUpdate",
		"sentTimestamp":   sentTimestamp,
		"recipient":       recipient,
		"durationSeconds": durationSeconds,
	}
}

// MessageSendJob builds an SNMessageSendJob. destination is the serialized
// form, for example "contact(05ab...)".
func MessageSendJob(id, destination string, msg Record) Record {
	return Record{
		"$class":       "SessionMessagingKit.SNMessageSendJob",
		"message":      msg,
		"destination":  destination,
		"id":           id,
		"failureCount": uint(0),
	}
}

// AttachmentUploadJob builds an AttachmentUploadJob chained to a send job.
func AttachmentUploadJob(id, attachmentID, threadKey, sendJobID string, msg Record) Record {
	return Record{
		"$class":           "SessionMessagingKit.AttachmentUploadJob",
		"attachmentID":     attachmentID,
		"threadID":         threadKey,
		"message":          msg,
		"messageSendJobID": sendJobID,
		"id":               id,
		"failureCount":     uint(0),
	}
}

// AttachmentDownloadJob builds an AttachmentDownloadJob.
func AttachmentDownloadJob(id, attachmentID, messageID, threadKey string) Record {
	return Record{
		"$class":              "SessionMessagingKit.AttachmentDownloadJob",
		"attachmentID":        attachmentID,
		"tsIncomingMessageID": messageID,
		"threadID":            threadKey,
		"id":                  id,
		"failureCount":        uint(0),
		"isDeferred":          false,
	}
}
