package store

import "fmt"

// InsertProfile inserts a profile row.
func (t *Tx) InsertProfile(p *Profile) error {
	_, err := t.tx.Exec(`
		INSERT INTO profile (id, name, nickname, profile_picture_url, profile_picture_file_name, profile_encryption_key)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Nickname, p.ProfilePictureURL, p.ProfilePictureFileName, p.ProfileEncryptionKey)
	if err != nil {
		return fmt.Errorf("insert profile %s: %w", p.ID, err)
	}
	return nil
}

// UpsertProfile inserts a profile row or replaces the existing one.
func (t *Tx) UpsertProfile(p *Profile) error {
	_, err := t.tx.Exec(`
		INSERT INTO profile (id, name, nickname, profile_picture_url, profile_picture_file_name, profile_encryption_key)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			nickname = excluded.nickname,
			profile_picture_url = excluded.profile_picture_url,
			profile_picture_file_name = excluded.profile_picture_file_name,
			profile_encryption_key = excluded.profile_encryption_key`,
		p.ID, p.Name, p.Nickname, p.ProfilePictureURL, p.ProfilePictureFileName, p.ProfileEncryptionKey)
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.ID, err)
	}
	return nil
}

// InsertContact inserts a contact row.
func (t *Tx) InsertContact(c *Contact) error {
	_, err := t.tx.Exec(`
		INSERT INTO contact (id, is_trusted, is_approved, is_blocked, did_approve_me, has_been_blocked)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.IsTrusted, c.IsApproved, c.IsBlocked, c.DidApproveMe, c.HasBeenBlocked)
	if err != nil {
		return fmt.Errorf("insert contact %s: %w", c.ID, err)
	}
	return nil
}

// InsertThread inserts a thread row.
func (t *Tx) InsertThread(th *Thread) error {
	_, err := t.tx.Exec(`
		INSERT INTO thread (id, variant, creation_date_timestamp, should_be_visible, is_pinned,
			message_draft, muted_until_timestamp, only_notify_for_mentions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		th.ID, th.Variant, th.CreationDateTimestamp, th.ShouldBeVisible, th.IsPinned,
		th.MessageDraft, th.MutedUntilTimestamp, th.OnlyNotifyForMentions)
	if err != nil {
		return fmt.Errorf("insert thread %s: %w", th.ID, err)
	}
	return nil
}

// InsertDisappearingConfig inserts a disappearing_messages_configuration row.
func (t *Tx) InsertDisappearingConfig(c *DisappearingConfig) error {
	_, err := t.tx.Exec(`
		INSERT INTO disappearing_messages_configuration (thread_id, is_enabled, duration_seconds)
		VALUES (?, ?, ?)`,
		c.ThreadID, c.IsEnabled, c.DurationSeconds)
	if err != nil {
		return fmt.Errorf("insert disappearing config %s: %w", c.ThreadID, err)
	}
	return nil
}

// InsertClosedGroup inserts a closed_group row.
func (t *Tx) InsertClosedGroup(g *ClosedGroup) error {
	_, err := t.tx.Exec(`
		INSERT INTO closed_group (thread_id, name, formation_timestamp)
		VALUES (?, ?, ?)`,
		g.ThreadID, g.Name, g.FormationTimestamp)
	if err != nil {
		return fmt.Errorf("insert closed group %s: %w", g.ThreadID, err)
	}
	return nil
}

// InsertClosedGroupKeyPair inserts a closed_group_key_pair row.
func (t *Tx) InsertClosedGroupKeyPair(kp *ClosedGroupKeyPair) error {
	_, err := t.tx.Exec(`
		INSERT INTO closed_group_key_pair (thread_id, public_key, secret_key, received_timestamp)
		VALUES (?, ?, ?, ?)`,
		kp.ThreadID, kp.PublicKey, kp.SecretKey, kp.ReceivedTimestamp)
	if err != nil {
		return fmt.Errorf("insert closed group key pair %s: %w", kp.ThreadID, err)
	}
	return nil
}

// InsertGroupMember inserts one group_member row.
func (t *Tx) InsertGroupMember(m *GroupMember) error {
	return t.InsertGroupMembers([]GroupMember{*m})
}

// InsertGroupMembers inserts group_member rows in chunks.
func (t *Tx) InsertGroupMembers(members []GroupMember) error {
	if len(members) == 0 {
		return nil
	}
	err := insertInChunks(t.tx, len(members), 3,
		"INSERT INTO group_member (group_id, profile_id, role) VALUES ", "",
		func(start, end int) ([]string, []any) {
			values := make([]string, 0, end-start)
			args := make([]any, 0, (end-start)*3)
			for _, m := range members[start:end] {
				values = append(values, "(?, ?, ?)")
				args = append(args, m.GroupID, m.ProfileID, m.Role)
			}
			return values, args
		})
	if err != nil {
		return fmt.Errorf("insert group members %s: %w", members[0].GroupID, err)
	}
	return nil
}

// InsertOpenGroup inserts an open_group row.
func (t *Tx) InsertOpenGroup(g *OpenGroup) error {
	_, err := t.tx.Exec(`
		INSERT INTO open_group (thread_id, server, room_token, public_key, name, is_active,
			room_description, image_id, image_data, user_count, info_updates,
			last_message_server_id, last_deletion_server_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ThreadID, g.Server, g.RoomToken, g.PublicKey, g.Name, g.IsActive,
		g.RoomDescription, g.ImageID, g.ImageData, g.UserCount, g.InfoUpdates,
		g.LastMessageServerID, g.LastDeletionServerID)
	if err != nil {
		return fmt.Errorf("insert open group %s: %w", g.ThreadID, err)
	}
	return nil
}

// InsertInteraction inserts an interaction row and sets i.ID.
//
// An interaction that collides with an existing row on any of the uniqueness
// sets (thread+author+timestamp, thread+server hash, thread+message uuid,
// thread+open group server id) is not inserted: i.ID is set to the existing
// row's id and inserted is false.
func (t *Tx) InsertInteraction(i *Interaction) (inserted bool, err error) {
	res, err := t.tx.Exec(`
		INSERT INTO interaction (server_hash, message_uuid, thread_id, author_id, variant, body,
			timestamp_ms, received_at_timestamp_ms, was_read, has_mention,
			expires_in_seconds, expires_started_at_ms, link_preview_url, open_group_server_message_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		i.ServerHash, i.MessageUUID, i.ThreadID, i.AuthorID, i.Variant, i.Body,
		i.TimestampMs, i.ReceivedAtTimestampMs, i.WasRead, i.HasMention,
		i.ExpiresInSeconds, i.ExpiresStartedAtMs, i.LinkPreviewURL, i.OpenGroupServerMessageID)
	if err != nil {
		return false, fmt.Errorf("insert interaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert interaction: %w", err)
	}
	if n == 1 {
		id, err := res.LastInsertId()
		if err != nil {
			return false, fmt.Errorf("insert interaction: %w", err)
		}
		i.ID = id
		return true, nil
	}

	err = t.tx.QueryRow(`
		SELECT id FROM interaction
		WHERE thread_id = ? AND (
			(author_id = ? AND timestamp_ms = ?)
			OR server_hash = ?
			OR message_uuid = ?
			OR open_group_server_message_id = ?)
		ORDER BY id LIMIT 1`,
		i.ThreadID, i.AuthorID, i.TimestampMs, i.ServerHash, i.MessageUUID, i.OpenGroupServerMessageID,
	).Scan(&i.ID)
	if err != nil {
		return false, fmt.Errorf("find duplicate interaction: %w", err)
	}
	return false, nil
}

// SaveRecipientState inserts or replaces a recipient_state row.
func (t *Tx) SaveRecipientState(rs *RecipientState) error {
	_, err := t.tx.Exec(`
		INSERT INTO recipient_state (interaction_id, recipient_id, state, read_timestamp_ms, most_recent_failure_text)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(interaction_id, recipient_id) DO UPDATE SET
			state = excluded.state,
			read_timestamp_ms = excluded.read_timestamp_ms,
			most_recent_failure_text = excluded.most_recent_failure_text`,
		rs.InteractionID, rs.RecipientID, rs.State, rs.ReadTimestampMs, rs.MostRecentFailureText)
	if err != nil {
		return fmt.Errorf("save recipient state %d/%s: %w", rs.InteractionID, rs.RecipientID, err)
	}
	return nil
}

// InsertAttachment inserts an attachment row.
func (t *Tx) InsertAttachment(a *Attachment) error {
	_, err := t.tx.Exec(`
		INSERT INTO attachment (id, server_id, variant, state, content_type, byte_count,
			creation_timestamp, source_filename, download_url, local_relative_file_path,
			width, height, duration, is_valid, encryption_key, digest, caption)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ServerID, a.Variant, a.State, a.ContentType, a.ByteCount,
		a.CreationTimestamp, a.SourceFilename, a.DownloadURL, a.LocalRelativeFilePath,
		a.Width, a.Height, a.Duration, a.IsValid, a.EncryptionKey, a.Digest, a.Caption)
	if err != nil {
		return fmt.Errorf("insert attachment %s: %w", a.ID, err)
	}
	return nil
}

// InsertInteractionAttachment links an attachment to an interaction at
// position albumIndex.
func (t *Tx) InsertInteractionAttachment(interactionID int64, attachmentID string, albumIndex int) error {
	_, err := t.tx.Exec(`
		INSERT INTO interaction_attachment (album_index, interaction_id, attachment_id)
		VALUES (?, ?, ?)`,
		albumIndex, interactionID, attachmentID)
	if err != nil {
		return fmt.Errorf("insert interaction attachment %d/%s: %w", interactionID, attachmentID, err)
	}
	return nil
}

// InsertQuote inserts a quote row.
func (t *Tx) InsertQuote(q *Quote) error {
	_, err := t.tx.Exec(`
		INSERT INTO quote (interaction_id, author_id, timestamp_ms, body, attachment_id)
		VALUES (?, ?, ?, ?, ?)`,
		q.InteractionID, q.AuthorID, q.TimestampMs, q.Body, q.AttachmentID)
	if err != nil {
		return fmt.Errorf("insert quote %d: %w", q.InteractionID, err)
	}
	return nil
}

// UpsertLinkPreview inserts a link_preview row or replaces the one with the
// same url and timestamp.
func (t *Tx) UpsertLinkPreview(lp *LinkPreview) error {
	_, err := t.tx.Exec(`
		INSERT INTO link_preview (url, timestamp, variant, title, attachment_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(url, timestamp) DO UPDATE SET
			variant = excluded.variant,
			title = excluded.title,
			attachment_id = excluded.attachment_id`,
		lp.URL, lp.Timestamp, lp.Variant, lp.Title, lp.AttachmentID)
	if err != nil {
		return fmt.Errorf("upsert link preview %s: %w", lp.URL, err)
	}
	return nil
}

// InsertJob inserts a job row and sets j.ID.
func (t *Tx) InsertJob(j *Job) error {
	res, err := t.tx.Exec(`
		INSERT INTO job (failure_count, variant, behaviour, next_run_timestamp, thread_id, interaction_id, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.FailureCount, j.Variant, j.Behaviour, j.NextRunTimestamp, j.ThreadID, j.InteractionID, j.Details)
	if err != nil {
		return fmt.Errorf("insert %s job: %w", j.Variant, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert %s job: %w", j.Variant, err)
	}
	j.ID = id
	return nil
}

// InsertProcessRecord inserts a control_message_process_record row. A record
// that already exists is left as is.
func (t *Tx) InsertProcessRecord(r *ProcessRecord) error {
	_, err := t.tx.Exec(`
		INSERT INTO control_message_process_record (thread_id, variant, timestamp_ms, server_expiration_timestamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		r.ThreadID, r.Variant, r.TimestampMs, r.ServerExpirationTimestamp)
	if err != nil {
		return fmt.Errorf("insert process record: %w", err)
	}
	return nil
}

// InsertLegacyProcessRecords inserts legacyEntry process records for each
// timestamp. They have no thread.
func (t *Tx) InsertLegacyProcessRecords(timestampsMs []int64) error {
	if len(timestampsMs) == 0 {
		return nil
	}
	err := insertInChunks(t.tx, len(timestampsMs), 3,
		"INSERT INTO control_message_process_record (thread_id, variant, timestamp_ms) VALUES ",
		" ON CONFLICT DO NOTHING",
		func(start, end int) ([]string, []any) {
			values := make([]string, 0, end-start)
			args := make([]any, 0, (end-start)*3)
			for _, ts := range timestampsMs[start:end] {
				values = append(values, "(?, ?, ?)")
				args = append(args, "", ProcessLegacyEntry, ts)
			}
			return values, args
		})
	if err != nil {
		return fmt.Errorf("insert legacy process records: %w", err)
	}
	return nil
}

// CountRows returns the number of rows in table. Used by verification and
// tests; table must be a known table name.
func (t *Tx) CountRows(table string) (int64, error) {
	var n int64
	if err := t.tx.QueryRow("SELECT COUNT(*) FROM " + quoteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
