package legacy_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sessionvault/legacymigrate/internal/legacy"
	"github.com/sessionvault/legacymigrate/internal/legacy/legacytest"
)

const (
	alice = "05aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob   = "05bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	group = "05cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
)

func decode[T legacy.Object](t *testing.T, rec legacytest.Record) T {
	t.Helper()
	obj, err := legacy.Decode(legacytest.Encode(t, rec))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	v, ok := obj.(T)
	if !ok {
		t.Fatalf("Decode returned %T", obj)
	}
	return v
}

func TestDecode_Contact(t *testing.T) {
	c := decode[*legacy.Contact](t, legacytest.Contact(alice).
		With("nickname", "Al").
		With("isBlocked", true))

	if c.SessionID != alice {
		t.Errorf("SessionID = %q", c.SessionID)
	}
	if c.Name == nil || *c.Name != "user "+alice {
		t.Errorf("Name = %v", c.Name)
	}
	if c.Nickname == nil || *c.Nickname != "Al" {
		t.Errorf("Nickname = %v", c.Nickname)
	}
	if !c.HasBeenBlocked {
		t.Error("blocked contact should report HasBeenBlocked")
	}
	if c.ProfileEncryptionKey != nil {
		t.Errorf("ProfileEncryptionKey = %v, want nil", c.ProfileEncryptionKey)
	}
}

func TestDecode_ContactMissingSessionID(t *testing.T) {
	raw := legacytest.Encode(t, legacytest.Contact(alice).Without("sessionID"))
	if _, err := legacy.Decode(raw); err == nil {
		t.Fatal("expected error for contact without sessionID")
	}
}

func TestDecode_ContactThread(t *testing.T) {
	th := decode[*legacy.Thread](t, legacytest.ContactThread(alice).With("messageDraft", "draft"))

	if th.Variant != legacy.ThreadContact {
		t.Errorf("Variant = %v, want contact", th.Variant)
	}
	if th.UniqueID != "c"+alice {
		t.Errorf("UniqueID = %q", th.UniqueID)
	}
	if !th.ShouldBeVisible {
		t.Error("ShouldBeVisible = false")
	}
	if th.MessageDraft != "draft" {
		t.Errorf("MessageDraft = %q", th.MessageDraft)
	}
	if !th.CreationDate.Equal(legacytest.Epoch) {
		t.Errorf("CreationDate = %v, want %v", th.CreationDate, legacytest.Epoch)
	}
	if th.MutedUntil != nil {
		t.Errorf("MutedUntil = %v, want nil", th.MutedUntil)
	}
}

func TestDecode_ThreadHasEverHadMessageWins(t *testing.T) {
	th := decode[*legacy.Thread](t, legacytest.ContactThread(alice).With("hasEverHadMessage", false))
	if th.ShouldBeVisible {
		t.Error("hasEverHadMessage=false should override shouldBeVisible=true")
	}
}

func TestDecode_GroupThreads(t *testing.T) {
	closed := decode[*legacy.Thread](t, legacytest.ClosedGroupThread(group, "Friends", []string{alice, bob}, []string{alice}))
	if closed.Variant != legacy.ThreadClosedGroup {
		t.Errorf("closed Variant = %v", closed.Variant)
	}
	if closed.Group == nil || closed.Group.Name() != "Friends" {
		t.Fatalf("closed Group = %+v", closed.Group)
	}
	if diff := cmp.Diff([]string{alice, bob}, closed.Group.MemberIDs); diff != "" {
		t.Errorf("MemberIDs mismatch (-want +got):\n%s", diff)
	}

	open := decode[*legacy.Thread](t, legacytest.OpenGroupThread("https://chat.example", "lobby", ""))
	if open.Variant != legacy.ThreadOpenGroup {
		t.Errorf("open Variant = %v", open.Variant)
	}
	if got := open.Group.Name(); got != "Group" {
		t.Errorf("empty group name = %q, want Group", got)
	}
}

func TestDecode_UnknownGroupType(t *testing.T) {
	rec := legacytest.ClosedGroupThread(group, "x", nil, nil).
		With("groupModel", legacytest.GroupModel([]byte("id"), 7, "x", nil, nil))
	if _, err := legacy.Decode(legacytest.Encode(t, rec)); err == nil {
		t.Fatal("expected error for unknown group type")
	}
}

func TestDecode_OpenGroupAndConfig(t *testing.T) {
	og := decode[*legacy.OpenGroupInfo](t, legacytest.OpenGroup("https://chat.example", "lobby", "Lobby", "pk"))
	if og.ID() != "https://chat.example.lobby" {
		t.Errorf("ID = %q", og.ID())
	}

	cfg := decode[*legacy.DisappearingConfig](t, legacytest.DisappearingConfig("c"+alice, true, 3600))
	if !cfg.IsEnabled || cfg.DurationSeconds != 3600 {
		t.Errorf("config = %+v", cfg)
	}

	kp := decode[*legacy.KeyPair](t, legacytest.KeyPair([]byte{1, 2}, []byte{3, 4}))
	if diff := cmp.Diff(&legacy.KeyPair{PublicKey: []byte{1, 2}, PrivateKey: []byte{3, 4}}, kp); diff != "" {
		t.Errorf("key pair mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_IncomingMessage(t *testing.T) {
	rec := legacytest.IncomingMessage("m1", "c"+alice, 1, 1650000000000, alice, "hi").
		Without("attachmentIds").
		With("attachments", []string{"a1", "a2"}).
		With("quotedMessage", legacytest.QuotedMessage(1649999999000, bob, "earlier", "a0"))

	m := decode[*legacy.Interaction](t, rec)
	if m.Kind != legacy.InteractionIncoming {
		t.Errorf("Kind = %v", m.Kind)
	}
	if diff := cmp.Diff([]string{"a1", "a2"}, m.AttachmentIDs); diff != "" {
		t.Errorf("attachments should fold into AttachmentIDs (-want +got):\n%s", diff)
	}
	if m.Attachments != nil {
		t.Errorf("Attachments = %v, want nil after normalize", m.Attachments)
	}
	if m.QuotedMessage == nil || m.QuotedMessage.AuthorID != bob {
		t.Fatalf("QuotedMessage = %+v", m.QuotedMessage)
	}
	if n := len(m.QuotedMessage.QuotedAttachments); n != 1 {
		t.Fatalf("quoted attachments = %d, want 1", n)
	}
	if id := m.QuotedMessage.QuotedAttachments[0].AttachmentID; id == nil || *id != "a0" {
		t.Errorf("quoted attachment id = %v", id)
	}
}

func TestDecode_IncomingMissingAuthor(t *testing.T) {
	rec := legacytest.IncomingMessage("m1", "c"+alice, 1, 1, alice, "hi").Without("authorId")
	if _, err := legacy.Decode(legacytest.Encode(t, rec)); err == nil {
		t.Fatal("expected error for incoming message without authorId")
	}
}

func TestDecode_OutgoingRecipients(t *testing.T) {
	rec := legacytest.OutgoingMessage("m2", "c"+alice, 2, 2, "yo", map[string]int{
		bob:   legacy.RecipientSent,
		alice: legacy.RecipientFailed,
	})
	m := decode[*legacy.Interaction](t, rec)
	if m.Kind != legacy.InteractionOutgoing {
		t.Errorf("Kind = %v", m.Kind)
	}
	if diff := cmp.Diff([]string{alice, bob}, m.RecipientIDs()); diff != "" {
		t.Errorf("RecipientIDs mismatch (-want +got):\n%s", diff)
	}
	if got := m.RecipientStateMap[bob].State; got != legacy.RecipientSent {
		t.Errorf("bob state = %d", got)
	}
}

func TestDecode_InfoCallQuirk(t *testing.T) {
	tests := []struct {
		name      string
		timestamp uint64
		callState bool
		want      legacy.InfoMessageType
	}{
		{"early without call state", 1600000000000, false, legacy.InfoMessageRequestAccepted},
		{"early with call state", 1600000000000, true, legacy.InfoCall},
		{"late without call state", 1700000000000, false, legacy.InfoCall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := legacytest.InfoMessage("i", "c"+alice, 1, tt.timestamp, legacy.InfoCall)
			if tt.callState {
				rec = rec.With("callState", 2)
			}
			m := decode[*legacy.Interaction](t, rec)
			if got := m.InfoType(); got != tt.want {
				t.Errorf("InfoType = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDecode_InfoMissingType(t *testing.T) {
	rec := legacytest.InfoMessage("i", "c"+alice, 1, 1, legacy.InfoGroupCreated).Without("messageType")
	if _, err := legacy.Decode(legacytest.Encode(t, rec)); err == nil {
		t.Fatal("expected error for info message without messageType")
	}
}

func TestDecode_DisappearingUpdate(t *testing.T) {
	m := decode[*legacy.Interaction](t, legacytest.DisappearingUpdateMessage("d", "c"+alice, 3, 3, "Bob", true, 60))
	if m.Kind != legacy.InteractionInfo || m.InfoType() != legacy.InfoDisappearingMessagesUpdate {
		t.Errorf("kind/type = %v/%d", m.Kind, m.InfoType())
	}
	if m.CreatedByRemoteName == nil || *m.CreatedByRemoteName != "Bob" {
		t.Errorf("CreatedByRemoteName = %v", m.CreatedByRemoteName)
	}
	if !m.ConfigurationIsEnabled || m.ConfigurationDurationSeconds != 60 {
		t.Errorf("configuration = %v/%d", m.ConfigurationIsEnabled, m.ConfigurationDurationSeconds)
	}
}

func TestDecode_Attachments(t *testing.T) {
	s := decode[*legacy.Attachment](t, legacytest.AttachmentStream("image/png", "/Attachments/a.png", true).
		With("cachedImageWidth", float64(640)).
		With("cachedImageHeight", float64(480)))
	if s.Kind != legacy.AttachmentStream || !s.IsUploaded {
		t.Errorf("stream = %+v", s)
	}
	if s.CachedImageWidth == nil || *s.CachedImageWidth != 640 {
		t.Errorf("CachedImageWidth = %v", s.CachedImageWidth)
	}

	p := decode[*legacy.Attachment](t, legacytest.AttachmentPointer("audio/aac", "https://files.example/1", legacy.PointerFailed))
	if p.Kind != legacy.AttachmentPointer || p.State != legacy.PointerFailed {
		t.Errorf("pointer = %+v", p)
	}
	if p.MediaSize == nil {
		t.Error("MediaSize = nil")
	}

	rec := legacytest.AttachmentPointer("", "u", 0)
	if _, err := legacy.Decode(legacytest.Encode(t, rec)); err == nil {
		t.Error("expected error for attachment without contentType")
	}
}

func TestDecode_Jobs(t *testing.T) {
	push := decode[*legacy.NotifyPushJob](t, legacytest.NotifyPushJob("p1", legacytest.SnodeMessage(alice, "ZGF0YQ==", 60, 1000)))
	if push.ID != "p1" || push.Message.Recipient != alice || push.Message.TTL != 60 {
		t.Errorf("push = %+v", push)
	}

	recv := decode[*legacy.MessageReceiveJob](t, legacytest.MessageReceiveJob("r1", []byte{1, 2, 3}))
	if recv.IsOpenGroup() {
		t.Error("receive job without open group fields reported IsOpenGroup")
	}

	send := decode[*legacy.MessageSendJob](t, legacytest.MessageSendJob("1650000000000-x", "contact("+alice+")",
		legacytest.VisibleMessage(1650000000000, alice, "hello")))
	if send.Message.Kind != legacy.MessageVisible {
		t.Errorf("message kind = %v", send.Message.Kind)
	}
	if send.Destination.Kind != legacy.DestinationContact || send.Destination.ThreadID() != alice {
		t.Errorf("destination = %+v", send.Destination)
	}

	up := decode[*legacy.AttachmentUploadJob](t, legacytest.AttachmentUploadJob("u1", "a1", "c"+alice, "s1",
		legacytest.VisibleMessage(1, alice, "")))
	if up.MessageSendJobID != "s1" || up.Message.Kind != legacy.MessageVisible {
		t.Errorf("upload = %+v", up)
	}

	down := decode[*legacy.AttachmentDownloadJob](t, legacytest.AttachmentDownloadJob("d1", "a1", "m1", "c"+alice))
	if down.MessageID != "m1" || down.AttachmentID != "a1" {
		t.Errorf("download = %+v", down)
	}
}

func TestDecode_SendJobV1OpenGroupSkipped(t *testing.T) {
	rec := legacytest.MessageSendJob("s", "openGroup(1, https://old.example)", legacytest.VisibleMessage(1, "", "x"))
	obj, err := legacy.Decode(legacytest.Encode(t, rec))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if obj != nil {
		t.Errorf("Decode = %T, want nil", obj)
	}
}

func TestDecode_SendJobUnknownMessageClass(t *testing.T) {
	msg := legacytest.VisibleMessage(1, alice, "x").With("$class", "SNMystery")
	rec := legacytest.MessageSendJob("s", "contact("+alice+")", msg)
	_, err := legacy.Decode(legacytest.Encode(t, rec))
	if !errors.Is(err, legacy.ErrUnknownClass) {
		t.Fatalf("err = %v, want ErrUnknownClass", err)
	}
}

func TestDecode_UnknownClass(t *testing.T) {
	_, err := legacy.Decode(legacytest.Encode(t, legacytest.Record{"$class": "TSMystery"}))
	if !errors.Is(err, legacy.ErrUnknownClass) {
		t.Fatalf("err = %v, want ErrUnknownClass", err)
	}
	_, err = legacy.Decode(legacytest.Encode(t, legacytest.Record{"uniqueId": "x"}))
	if !errors.Is(err, legacy.ErrUnknownClass) {
		t.Fatalf("err = %v, want ErrUnknownClass for missing class", err)
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := legacy.Decode([]byte("not a plist")); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestPeekInteraction(t *testing.T) {
	raw := legacytest.Encode(t, legacytest.IncomingMessage("m9", "c"+alice, 42, 7, alice, "x"))
	h, err := legacy.PeekInteraction(raw)
	if err != nil {
		t.Fatalf("PeekInteraction: %v", err)
	}
	want := legacy.InteractionHeader{UniqueID: "m9", UniqueThreadID: "c" + alice, SortID: 42, Timestamp: 7}
	if h != want {
		t.Errorf("header = %+v, want %+v", h, want)
	}
}

func TestDecodeValue(t *testing.T) {
	s := legacytest.New()
	s.PutValue(t, "c", "list", []uint64{3, 1, 2})
	raw, err := s.Get("c", "list")
	if err != nil {
		t.Fatal(err)
	}
	var got []uint64
	if err := legacy.DecodeValue(raw, &got); err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if diff := cmp.Diff([]uint64{3, 1, 2}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
