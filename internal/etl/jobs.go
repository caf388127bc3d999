package etl

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/sessionvault/legacymigrate/internal/legacy"
	"github.com/sessionvault/legacymigrate/internal/store"
)

// receivedMessageLifetime is how long a re-queued received message stays
// eligible for processing, in seconds.
const receivedMessageLifetime = 15 * 24 * 60 * 60

type notifyPushDetails struct {
	Message legacy.SnodeMessage `json:"message"`
}

type receiveDetails struct {
	Messages         []receivedMessage `json:"messages"`
	IsBackgroundPoll bool              `json:"isBackgroundPoll"`
}

type receivedMessage struct {
	Data                      []byte  `json:"data"`
	ServerHash                *string `json:"serverHash,omitempty"`
	ServerExpirationTimestamp float64 `json:"serverExpirationTimestamp"`
}

type sendDetails struct {
	Destination legacy.Destination `json:"destination"`
	Message     *legacy.Message    `json:"message"`
}

type uploadDetails struct {
	ThreadID         string `json:"threadId"`
	AttachmentID     string `json:"attachmentId"`
	MessageSendJobID int64  `json:"messageSendJobId"`
}

type downloadDetails struct {
	AttachmentID string `json:"attachmentId"`
}

type readReceiptsDetails struct {
	Destination       legacy.Destination `json:"destination"`
	TimestampMsValues []int64            `json:"timestampMsValues"`
}

// migrateJobs re-creates the pending legacy jobs. Send jobs run before
// upload jobs, which reference them.
func (r *run) migrateJobs(data *legacyData) error {
	steps := []struct {
		collection string
		migrate    func(key string, obj legacy.Object) error
	}{
		{legacy.NotifyPushServerJobCollection, r.migrateNotifyPushJob},
		{legacy.MessageReceiveJobCollection, r.migrateReceiveJob},
		{legacy.MessageSendJobCollection, r.migrateSendJob},
		{legacy.AttachmentUploadJobCollection, r.migrateUploadJob},
		{legacy.AttachmentDownloadJobCollection, r.migrateDownloadJob},
	}
	for _, step := range steps {
		if err := r.enumerate(step.collection, step.migrate); err != nil {
			return err
		}
	}
	return r.migrateReadReceipts(data.readReceipts)
}

func (r *run) insertJob(job *store.Job, details any) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode %s job details: %w", job.Variant, err)
	}
	job.Details = raw
	if err := r.tx.InsertJob(job); err != nil {
		return err
	}
	r.summary.Jobs++
	return nil
}

func (r *run) migrateNotifyPushJob(_ string, obj legacy.Object) error {
	lj, ok := obj.(*legacy.NotifyPushJob)
	if !ok {
		return fmt.Errorf("unexpected record %T", obj)
	}
	return r.insertJob(&store.Job{
		FailureCount: int64(lj.FailureCount),
		Variant:      store.JobNotifyPushServer,
		Behaviour:    store.JobRunOnce,
	}, notifyPushDetails{Message: lj.Message})
}

func (r *run) migrateReceiveJob(key string, obj legacy.Object) error {
	lj, ok := obj.(*legacy.MessageReceiveJob)
	if !ok {
		return fmt.Errorf("unexpected record %T", obj)
	}
	if lj.IsOpenGroup() {
		r.summary.IgnoredJobs++
		r.logger.Debug("ignoring open group receive job", "job", key)
		return nil
	}
	env, err := parseEnvelope(lj.Data)
	if err != nil {
		r.summary.IgnoredJobs++
		r.warn("ignoring receive job with unreadable envelope", "job", key, "error", err)
		return nil
	}
	r.logger.Debug("re-queueing received message", "job", key, "envelope_type", env.typ)

	return r.insertJob(&store.Job{
		FailureCount: int64(lj.FailureCount),
		Variant:      store.JobMessageReceive,
		Behaviour:    store.JobRunOnce,
		ThreadID:     env.threadID(),
	}, receiveDetails{
		Messages: []receivedMessage{{
			Data:                      lj.Data,
			ServerHash:                lj.ServerHash,
			ServerExpirationTimestamp: unixSeconds(r.now) + receivedMessageLifetime,
		}},
		IsBackgroundPoll: lj.IsBackgroundPoll,
	})
}

func (r *run) migrateSendJob(key string, obj legacy.Object) error {
	if obj == nil {
		r.summary.IgnoredJobs++
		r.logger.Debug("ignoring send job to a legacy open group", "job", key)
		return nil
	}
	lj, ok := obj.(*legacy.MessageSendJob)
	if !ok {
		return fmt.Errorf("unexpected record %T", obj)
	}
	if lj.Message == nil {
		return fmt.Errorf("send job %s has no message", key)
	}

	threadID := lj.Destination.ThreadID()
	job := &store.Job{
		FailureCount: int64(lj.FailureCount),
		Variant:      store.JobMessageSend,
		Behaviour:    store.JobRunOnce,
		ThreadID:     &threadID,
	}
	// Jobs without a matching interaction (configuration messages and the
	// like) keep a nil interaction.
	if id, ok := r.sendJobInteraction(lj); ok {
		job.InteractionID = &id
	}
	if err := r.insertJob(job, sendDetails{Destination: lj.Destination, Message: lj.Message}); err != nil {
		return err
	}
	if lj.ID != "" {
		r.ids.sendJobs[lj.ID] = job.ID
		r.ids.sendJobThreads[lj.ID] = threadID
	}
	return nil
}

// sendJobInteraction finds the interaction a send job delivers. Send jobs
// only kept the sent timestamp and recipient of their message.
func (r *run) sendJobInteraction(lj *legacy.MessageSendJob) (int64, bool) {
	var sentMs uint64
	if lj.Message.SentTimestamp != nil {
		sentMs = *lj.Message.SentTimestamp
	} else {
		sentMs = r.ids.jobIDTimestamp(lj.ID)
	}

	recipient := "0"
	switch {
	case lj.Destination.Kind == legacy.DestinationContact:
		recipient = lj.Destination.PublicKey
	case lj.Message.Recipient != nil:
		recipient = *lj.Message.Recipient
	}

	var variant *store.InteractionVariant
	if lj.Message.Kind == legacy.MessageExpirationTimerUpdate {
		v := store.VariantInfoDisappearingMessagesUpdate
		variant = &v
	}
	return r.ids.findInteraction(lj.Destination.ThreadID(), sentMs, variant, recipient)
}

func (r *run) migrateUploadJob(key string, obj legacy.Object) error {
	lj, ok := obj.(*legacy.AttachmentUploadJob)
	if !ok {
		return fmt.Errorf("unexpected record %T", obj)
	}
	sendJobID, ok := r.ids.sendJobs[lj.MessageSendJobID]
	if !ok {
		return fmt.Errorf("upload job %s: send job %s was not migrated", key, lj.MessageSendJobID)
	}
	attachmentID, ok := r.ids.attachments[lj.AttachmentID]
	if !ok {
		return fmt.Errorf("upload job %s: attachment %s was not migrated", key, lj.AttachmentID)
	}
	return r.insertJob(&store.Job{
		FailureCount: int64(lj.FailureCount),
		Variant:      store.JobAttachmentUpload,
		Behaviour:    store.JobRunOnce,
	}, uploadDetails{
		ThreadID:         r.ids.sendJobThreads[lj.MessageSendJobID],
		AttachmentID:     attachmentID,
		MessageSendJobID: sendJobID,
	})
}

func (r *run) migrateDownloadJob(key string, obj legacy.Object) error {
	lj, ok := obj.(*legacy.AttachmentDownloadJob)
	if !ok {
		return fmt.Errorf("unexpected record %T", obj)
	}
	interactionID, ok := r.ids.interactions[lj.MessageID]
	if !ok {
		return fmt.Errorf("download job %s: interaction %s was not migrated", key, lj.MessageID)
	}
	attachmentID, ok := r.ids.attachments[lj.AttachmentID]
	if !ok {
		return fmt.Errorf("download job %s: attachment %s was not migrated", key, lj.AttachmentID)
	}
	job := &store.Job{
		FailureCount:  int64(lj.FailureCount),
		Variant:       store.JobAttachmentDownload,
		Behaviour:     store.JobRunOnce,
		InteractionID: &interactionID,
	}
	if threadID, ok := r.ids.threads[lj.ThreadID]; ok {
		job.ThreadID = &threadID
	}
	return r.insertJob(job, downloadDetails{AttachmentID: attachmentID})
}

// migrateReadReceipts creates one recurring job per contact with read
// receipts still to send.
func (r *run) migrateReadReceipts(receipts map[string][]int64) error {
	for _, contactID := range slices.Sorted(maps.Keys(receipts)) {
		timestamps := slices.Clone(receipts[contactID])
		slices.Sort(timestamps)
		threadID := contactID
		err := r.insertJob(&store.Job{
			Variant:   store.JobSendReadReceipts,
			Behaviour: store.JobRecurring,
			ThreadID:  &threadID,
		}, readReceiptsDetails{
			Destination:       legacy.Destination{Kind: legacy.DestinationContact, PublicKey: contactID},
			TimestampMsValues: timestamps,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// migrateLegacyProcessRecords records received message timestamps that no
// migrated interaction covers, so those messages are not processed again.
func (r *run) migrateLegacyProcessRecords() error {
	timestamps := make([]int64, 0, len(r.ids.received))
	for ts := range r.ids.received {
		timestamps = append(timestamps, int64(ts))
	}
	slices.Sort(timestamps)
	if err := r.tx.InsertLegacyProcessRecords(timestamps); err != nil {
		return err
	}
	r.summary.ProcessRecords += int64(len(timestamps))
	return nil
}
