package etl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/sessionvault/legacymigrate/internal/legacy"
	"github.com/sessionvault/legacymigrate/internal/store"
	"github.com/sessionvault/legacymigrate/internal/textutil"
)

// disappearingUpdateClass is the legacy class whose body is rebuilt from its
// configuration fields.
const disappearingUpdateClass = "OWSDisappearingConfigurationUpdateInfoMessage"

var infoVariants = map[legacy.InfoMessageType]store.InteractionVariant{
	legacy.InfoGroupCreated:               store.VariantInfoClosedGroupCreated,
	legacy.InfoGroupUpdated:               store.VariantInfoClosedGroupUpdated,
	legacy.InfoGroupCurrentUserLeft:       store.VariantInfoClosedGroupCurrentUserLeft,
	legacy.InfoDisappearingMessagesUpdate: store.VariantInfoDisappearingMessagesUpdate,
	legacy.InfoScreenshotNotification:     store.VariantInfoScreenshotNotification,
	legacy.InfoMediaSavedNotification:     store.VariantInfoMediaSavedNotification,
	legacy.InfoCall:                       store.VariantInfoCall,
	legacy.InfoMessageRequestAccepted:     store.VariantInfoMessageRequestAccepted,
}

// processRecordVariants lists the interaction variants that were produced by
// a control message and need a process record so the message is not handled
// a second time.
var processRecordVariants = map[store.InteractionVariant]store.ProcessRecordVariant{
	store.VariantInfoClosedGroupCreated:         store.ProcessClosedGroupControlMessage,
	store.VariantInfoClosedGroupUpdated:         store.ProcessClosedGroupControlMessage,
	store.VariantInfoDisappearingMessagesUpdate: store.ProcessExpirationTimerUpdate,
	store.VariantInfoScreenshotNotification:     store.ProcessDataExtractionNotification,
	store.VariantInfoMediaSavedNotification:     store.ProcessDataExtractionNotification,
	store.VariantInfoMessageRequestAccepted:     store.ProcessMessageRequestResponse,
	store.VariantInfoCall:                       store.ProcessCall,
}

// migrateInteractions decodes every interaction of a thread and migrates them
// in conversation order.
func (r *run) migrateInteractions(plan *threadPlan, refs []interactionRef) error {
	thread := make([]*legacy.Interaction, 0, len(refs))
	for _, ref := range refs {
		obj, found, err := r.decodeRecord(legacy.InteractionCollection, ref.key)
		if err != nil {
			return err
		}
		li, ok := obj.(*legacy.Interaction)
		if !found || !ok {
			return fmt.Errorf("interaction %s: unexpected record %T", ref.key, obj)
		}
		thread = append(thread, li)
	}
	for _, li := range thread {
		if err := r.migrateInteraction(plan, li, thread); err != nil {
			return fmt.Errorf("interaction %s: %w", li.UniqueID, err)
		}
	}
	return nil
}

// migrateInteraction writes one interaction and, unless it duplicates an
// interaction already written, its recipient states, quote, link preview and
// attachments. thread holds every interaction of the same thread.
func (r *run) migrateInteraction(plan *threadPlan, li *legacy.Interaction, thread []*legacy.Interaction) error {
	row := &store.Interaction{
		ServerHash:            li.ServerHash,
		ThreadID:              plan.id,
		TimestampMs:           int64(li.Timestamp),
		ReceivedAtTimestampMs: int64(li.ReceivedAtTimestamp),
	}
	if li.OpenGroupServerMessageID != 0 {
		id := int64(li.OpenGroupServerMessageID)
		row.OpenGroupServerMessageID = &id
	}

	linkPreview := li.LinkPreview
	linkPreviewVariant := store.LinkPreviewStandard
	if li.OpenGroupInvitationName != nil && li.OpenGroupInvitationURL != nil {
		linkPreview = &legacy.LinkPreview{URLString: li.OpenGroupInvitationURL, Title: li.OpenGroupInvitationName}
		linkPreviewVariant = store.LinkPreviewOpenGroupInvitation
	}
	attachmentIDs := li.AttachmentIDs
	if li.IsDeleted {
		attachmentIDs = nil
	}

	body := li.Body
	switch li.Kind {
	case legacy.InteractionIncoming:
		row.Variant = store.VariantStandardIncoming
		if li.IsDeleted {
			row.Variant = store.VariantStandardIncomingDeleted
		}
		row.AuthorID = li.AuthorID
		row.WasRead = li.WasRead
		row.ExpiresInSeconds, row.ExpiresStartedAtMs = expiry(li)

	case legacy.InteractionOutgoing:
		row.Variant = store.VariantStandardOutgoing
		row.AuthorID = r.localKey
		row.WasRead = true
		row.ExpiresInSeconds, row.ExpiresStartedAtMs = expiry(li)

	case legacy.InteractionInfo:
		variant, ok := infoVariants[li.InfoType()]
		if !ok {
			return fmt.Errorf("unsupported info message type %d", li.InfoType())
		}
		row.Variant = variant
		row.AuthorID = r.localKey
		row.WasRead = li.WasRead
		var err error
		if body, err = infoBody(li); err != nil {
			return err
		}
		if variant == store.VariantInfoDisappearingMessagesUpdate {
			row.ServerHash = nil
		}

	default:
		return fmt.Errorf("unsupported interaction kind %v", li.Kind)
	}

	row.Body = textutil.CleanOptional(body)
	row.HasMention = (row.Body != nil && strings.Contains(*row.Body, "@"+r.localKey)) ||
		(li.QuotedMessage != nil && li.QuotedMessage.AuthorID == r.localKey)
	if linkPreview != nil {
		row.LinkPreviewURL = linkPreview.URLString
	}

	inserted, err := r.tx.InsertInteraction(row)
	if err != nil {
		return err
	}
	if processVariant, ok := processRecordVariants[row.Variant]; ok {
		err := r.tx.InsertProcessRecord(&store.ProcessRecord{
			ThreadID:    plan.id,
			Variant:     processVariant,
			TimestampMs: row.TimestampMs,
		})
		if err != nil {
			return err
		}
		r.summary.ProcessRecords++
	}
	delete(r.ids.received, li.Timestamp)
	r.ids.addInteraction(li.UniqueID, plan.id, li.Timestamp, row.Variant, r.fingerprintRecipient(plan, li), row.ID)

	if !inserted {
		r.summary.DuplicateInteractions++
		r.logger.Debug("skipping duplicate interaction", "thread", plan.id, "timestamp", li.Timestamp, "existing_id", row.ID)
		return nil
	}
	r.summary.Interactions++

	if li.Kind == legacy.InteractionOutgoing {
		if err := r.migrateRecipientStates(row.ID, li); err != nil {
			return err
		}
	}
	if err := r.migrateQuote(row.ID, li, thread); err != nil {
		return err
	}
	if err := r.migrateLinkPreview(li.Timestamp, linkPreview, linkPreviewVariant); err != nil {
		return err
	}

	seen := make(map[string]bool, len(attachmentIDs))
	albumIndex := 0
	for _, legacyID := range attachmentIDs {
		if seen[legacyID] {
			continue
		}
		seen[legacyID] = true
		id, err := r.attachmentFor(legacyID, li.Kind == legacy.InteractionOutgoing)
		if err != nil {
			return err
		}
		if id == nil {
			r.logger.Error("missing interaction attachment", "interaction", li.UniqueID, "attachment", legacyID)
			return fmt.Errorf("interaction %s: attachment %s missing from legacy store", li.UniqueID, legacyID)
		}
		if err := r.tx.InsertInteractionAttachment(row.ID, *id, albumIndex); err != nil {
			return err
		}
		albumIndex++
	}
	return nil
}

func expiry(li *legacy.Interaction) (expiresIn, startedAt *float64) {
	if li.ExpiresInSeconds > 0 {
		v := float64(li.ExpiresInSeconds)
		expiresIn = &v
	}
	if li.ExpireStartedAt > 0 {
		v := float64(li.ExpireStartedAt)
		startedAt = &v
	}
	return expiresIn, startedAt
}

// fingerprintRecipient is the recipient part of an interaction's
// fingerprints: the contact for one-to-one threads, otherwise the first
// recipient of an outgoing message.
func (r *run) fingerprintRecipient(plan *threadPlan, li *legacy.Interaction) string {
	if plan.thread.Variant == legacy.ThreadContact {
		return plan.id
	}
	if li.Kind == legacy.InteractionOutgoing {
		if ids := li.RecipientIDs(); len(ids) > 0 {
			return ids[0]
		}
	}
	return "0"
}

type disappearingUpdateBody struct {
	SenderName      *string `json:"senderName,omitempty"`
	IsEnabled       bool    `json:"isEnabled"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// infoBody returns the body stored for an info message. Disappearing
// configuration updates keep their settings as JSON so the text can be
// rendered in the reader's language later.
func infoBody(li *legacy.Interaction) (*string, error) {
	if li.InfoType() == legacy.InfoDisappearingMessagesUpdate && li.Class == disappearingUpdateClass {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		err := enc.Encode(disappearingUpdateBody{
			SenderName:      li.CreatedByRemoteName,
			IsEnabled:       li.ConfigurationIsEnabled,
			DurationSeconds: float64(li.ConfigurationDurationSeconds),
		})
		if err != nil {
			return nil, fmt.Errorf("encode disappearing update body: %w", err)
		}
		body := strings.TrimSuffix(buf.String(), "\n")
		return &body, nil
	}
	if li.Body != nil && *li.Body != "" {
		return li.Body, nil
	}
	return li.CustomMessage, nil
}

func (r *run) migrateRecipientStates(interactionID int64, li *legacy.Interaction) error {
	for _, recipientID := range li.RecipientIDs() {
		legacyState := li.RecipientStateMap[recipientID]
		rs := &store.RecipientState{
			InteractionID:   interactionID,
			RecipientID:     recipientID,
			ReadTimestampMs: legacyState.ReadTimestamp,
		}
		switch legacyState.State {
		case legacy.RecipientFailed:
			rs.State = store.StateFailed
			rs.MostRecentFailureText = textutil.CleanOptional(li.MostRecentFailureText)
		case legacy.RecipientSending:
			rs.State = store.StateSending
		case legacy.RecipientSkipped:
			rs.State = store.StateSkipped
		case legacy.RecipientSent:
			rs.State = store.StateSent
		default:
			return fmt.Errorf("recipient %s: unknown delivery state %d", recipientID, legacyState.State)
		}
		if err := r.tx.SaveRecipientState(rs); err != nil {
			return err
		}
		r.summary.RecipientStates++
	}
	return nil
}

// migrateQuote writes the quote of li, if any. The quoted attachment is the
// first thumbnail or original that still exists. Quotes written before
// thumbnails were tracked fall back to the first attachment of the quoted
// message itself.
func (r *run) migrateQuote(interactionID int64, li *legacy.Interaction, thread []*legacy.Interaction) error {
	q := li.QuotedMessage
	if q == nil {
		return nil
	}

	legacyAttachmentID, err := r.quotedAttachment(q)
	if err != nil {
		return err
	}
	if legacyAttachmentID == "" && len(q.QuotedAttachments) > 0 {
		i := slices.IndexFunc(thread, func(other *legacy.Interaction) bool {
			return other.Timestamp == q.Timestamp &&
				(q.AuthorID == r.localKey ||
					(other.Kind == legacy.InteractionIncoming && other.AuthorID == q.AuthorID))
		})
		if i >= 0 && len(thread[i].AttachmentIDs) > 0 {
			legacyAttachmentID = thread[i].AttachmentIDs[0]
			r.logger.Debug("reconciled quote attachment from the quoted message", "interaction", li.UniqueID)
		} else {
			r.warn("unable to reconcile quote attachment", "interaction", li.UniqueID)
		}
	}

	if !r.ids.profiles[q.AuthorID] {
		if err := r.tx.UpsertProfile(&store.Profile{ID: q.AuthorID, Name: q.AuthorID}); err != nil {
			return err
		}
		r.ids.profiles[q.AuthorID] = true
		r.warn("quote author has no profile, created a placeholder", "author", q.AuthorID)
	}

	var attachmentID *string
	if legacyAttachmentID != "" {
		if attachmentID, err = r.attachmentFor(legacyAttachmentID, false); err != nil {
			return err
		}
		if attachmentID == nil {
			r.warn("quoted attachment missing from legacy store", "interaction", li.UniqueID, "attachment", legacyAttachmentID)
		}
	}
	err = r.tx.InsertQuote(&store.Quote{
		InteractionID: interactionID,
		AuthorID:      q.AuthorID,
		TimestampMs:   int64(q.Timestamp),
		Body:          textutil.CleanOptional(q.Body),
		AttachmentID:  attachmentID,
	})
	if err != nil {
		return err
	}
	r.summary.Quotes++
	return nil
}

// quotedAttachment returns the legacy key of the first quoted attachment
// candidate present in the legacy store, or "".
func (r *run) quotedAttachment(q *legacy.QuotedMessage) (string, error) {
	for _, info := range q.QuotedAttachments {
		for _, candidate := range []*string{info.ThumbnailAttachmentStreamID, info.ThumbnailAttachmentPointerID, info.AttachmentID} {
			if candidate == nil || *candidate == "" {
				continue
			}
			a, err := r.attachment(*candidate)
			if err != nil {
				return "", err
			}
			if a != nil {
				return *candidate, nil
			}
		}
	}
	return "", nil
}

// linkPreviewTimestamp buckets a sent timestamp so messages sharing a url
// share one preview row.
func linkPreviewTimestamp(sentMs uint64) float64 {
	return math.Floor(float64(sentMs)/1000/100000) * 100000
}

func (r *run) migrateLinkPreview(sentMs uint64, lp *legacy.LinkPreview, variant store.LinkPreviewVariant) error {
	if lp == nil || lp.URLString == nil {
		return nil
	}
	var attachmentID *string
	if lp.ImageAttachmentID != nil && *lp.ImageAttachmentID != "" {
		a, err := r.attachment(*lp.ImageAttachmentID)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("link preview %s: image attachment %s not found", *lp.URLString, *lp.ImageAttachmentID)
		}
		if attachmentID, err = r.attachmentFor(*lp.ImageAttachmentID, false); err != nil {
			return err
		}
	}
	err := r.tx.UpsertLinkPreview(&store.LinkPreview{
		URL:          *lp.URLString,
		Timestamp:    linkPreviewTimestamp(sentMs),
		Variant:      variant,
		Title:        textutil.CleanOptional(lp.Title),
		AttachmentID: attachmentID,
	})
	if err != nil {
		return err
	}
	r.summary.LinkPreviews++
	return nil
}
