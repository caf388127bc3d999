package legacy

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Collection names used by the legacy store.
const (
	ContactCollection            = "LokiContactCollection"
	ThreadCollection             = "TSThread"
	DisappearingConfigCollection = "OWSDisappearingMessagesConfiguration"

	ClosedGroupFormationTimestampCollection = "SNClosedGroupFormationTimestampCollection"
	ClosedGroupZombieMembersCollection      = "SNClosedGroupZombieMembersCollection"
	ClosedGroupPublicKeyCollection          = "SNClosedGroupPublicKeyCollection"
	// ClosedGroupKeyPairCollectionPrefix is followed by the group public key;
	// each key in such a collection is a received timestamp in seconds.
	ClosedGroupKeyPairCollectionPrefix = "SNClosedGroupEncryptionKeyPairCollection-"

	OpenGroupCollection                     = "SNOpenGroupCollection"
	OpenGroupUserCountCollection            = "SNOpenGroupUserCountCollection"
	OpenGroupImageCollection                = "SNOpenGroupImageCollection"
	OpenGroupLastMessageServerIDCollection  = "SNLastMessageServerIDCollection"
	OpenGroupLastDeletionServerIDCollection = "SNLastDeletionServerIDCollection"

	InteractionCollection = "TSInteraction"
	// AttachmentCollection keeps the legacy spelling.
	AttachmentCollection                = "TSAttachements"
	OutgoingReadReceiptCollection       = "kOutgoingReadReceiptManagerCollection"
	ReceivedMessageTimestampsCollection = "ReceivedMessageTimestampsCollection"
	ReceivedMessageTimestampsKey        = "receivedMessageTimestamps"

	NotifyPushServerJobCollection   = "NotifyPNServerJobCollection"
	MessageReceiveJobCollection     = "MessageReceiveJobCollection"
	MessageSendJobCollection        = "MessageSendJobCollection"
	AttachmentUploadJobCollection   = "AttachmentUploadJobCollection"
	AttachmentDownloadJobCollection = "AttachmentDownloadJobCollection"
)

// Preference collections and keys.
const (
	PreferencesCollection             = "SignalPreferences"
	PreferenceLastRecordedPushToken   = "LastRecordedPushToken"
	PreferenceLastRecordedVoipToken   = "LastRecordedVoipToken"
	PreferenceAreLinkPreviewsEnabled  = "areLinkPreviewsEnabled"
	PreferenceAreCallsEnabled         = "areCallsEnabled"
	PreferenceNotificationPreviewType = "preferencesKeyNotificationPreviewType"
	PreferenceScreenSecurityDisabled  = "Screen Security Key"

	ReadReceiptCollection       = "OWSReadReceiptManagerCollection"
	ReadReceiptsEnabledKey      = "areReadReceiptsEnabled"
	TypingIndicatorsCollection  = "TypingIndicators"
	TypingIndicatorsEnabledKey  = "kDatabaseKey_TypingIndicatorsEnabled"
	ScreenLockCollection        = "OWSScreenLock_Collection"
	ScreenLockEnabledKey        = "OWSScreenLock_Key_IsScreenLockEnabled"
	ScreenLockTimeoutSecondsKey = "OWSScreenLock_Key_ScreenLockTimeoutSeconds"
	SoundsCollection            = "kOWSSoundsStorageNotificationCollection"
	SoundsGlobalNotificationKey = "kOWSSoundsStorageGlobalNotificationKey"
)

// Thread key encoding.
const (
	ContactThreadPrefix = "c"
	GroupThreadPrefix   = "g"
	ClosedGroupIDPrefix = "__textsecure_group__!"
)

// ContactThreadKey returns the legacy thread key for a one-to-one thread.
func ContactThreadKey(publicKey string) string {
	return ContactThreadPrefix + publicKey
}

// ClosedGroupThreadKey returns the legacy thread key for a closed group:
// "g" followed by base64("__textsecure_group__!" + publicKey).
func ClosedGroupThreadKey(publicKey string) string {
	return GroupThreadPrefix + base64.StdEncoding.EncodeToString([]byte(ClosedGroupIDPrefix+publicKey))
}

// ClosedGroupPublicKey extracts the group public key from a legacy closed
// group thread key.
func ClosedGroupPublicKey(threadKey string) (string, error) {
	if !strings.HasPrefix(threadKey, GroupThreadPrefix) {
		return "", fmt.Errorf("closed group key %q: missing %q prefix", threadKey, GroupThreadPrefix)
	}
	groupID, err := base64.StdEncoding.DecodeString(threadKey[len(GroupThreadPrefix):])
	if err != nil {
		return "", fmt.Errorf("closed group key %q: %w", threadKey, err)
	}
	id := string(groupID)
	i := strings.LastIndex(id, "!")
	publicKey := id[i+1:]
	if publicKey == "" {
		return "", fmt.Errorf("closed group key %q: empty public key", threadKey)
	}
	return publicKey, nil
}

// OpenGroupID is the identifier shared by open group threads and their
// counters: "server.room".
func OpenGroupID(server, room string) string {
	return server + "." + room
}
