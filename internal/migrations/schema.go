package migrations

import (
	"context"

	"github.com/sessionvault/legacymigrate/internal/migration"
	"github.com/sessionvault/legacymigrate/internal/store"
)

func col(name string, typ store.ColumnType) store.Column {
	return store.Column{Name: name, Type: typ}
}

func notNull(name string, typ store.ColumnType) store.Column {
	return store.Column{Name: name, Type: typ, NotNull: true}
}

func flag(name string) store.Column {
	return store.Column{Name: name, Type: store.TypeBoolean, NotNull: true, Default: "0"}
}

func ref(name string, typ store.ColumnType, table, column string, onDelete store.DeleteRule) store.Column {
	return store.Column{
		Name:       name,
		Type:       typ,
		References: &store.ForeignKey{Table: table, Column: column, OnDelete: onDelete},
	}
}

func pk(c store.Column) store.Column {
	c.PrimaryKey = true
	c.NotNull = true
	return c
}

func required(c store.Column) store.Column {
	c.NotNull = true
	return c
}

var settingsTables = []store.TableDef{
	{
		Name: "setting",
		Columns: []store.Column{
			pk(col("key", store.TypeText)),
			notNull("value", store.TypeText),
		},
	},
}

var messagingTables = []store.TableDef{
	{
		Name: "profile",
		Columns: []store.Column{
			pk(col("id", store.TypeText)),
			notNull("name", store.TypeText),
			col("nickname", store.TypeText),
			col("profile_picture_url", store.TypeText),
			col("profile_picture_file_name", store.TypeText),
			col("profile_encryption_key", store.TypeBlob),
		},
	},
	{
		Name: "contact",
		Columns: []store.Column{
			pk(col("id", store.TypeText)),
			flag("is_trusted"),
			flag("is_approved"),
			flag("is_blocked"),
			flag("did_approve_me"),
			flag("has_been_blocked"),
		},
	},
	{
		Name: "thread",
		Columns: []store.Column{
			pk(col("id", store.TypeText)),
			notNull("variant", store.TypeInteger),
			notNull("creation_date_timestamp", store.TypeReal),
			flag("should_be_visible"),
			flag("is_pinned"),
			col("message_draft", store.TypeText),
			col("muted_until_timestamp", store.TypeReal),
			flag("only_notify_for_mentions"),
		},
	},
	{
		Name: "disappearing_messages_configuration",
		Columns: []store.Column{
			pk(ref("thread_id", store.TypeText, "thread", "id", store.Cascade)),
			flag("is_enabled"),
			notNull("duration_seconds", store.TypeReal),
		},
	},
	{
		Name: "closed_group",
		Columns: []store.Column{
			pk(ref("thread_id", store.TypeText, "thread", "id", store.Cascade)),
			notNull("name", store.TypeText),
			notNull("formation_timestamp", store.TypeReal),
		},
	},
	{
		Name: "closed_group_key_pair",
		Columns: []store.Column{
			required(ref("thread_id", store.TypeText, "closed_group", "thread_id", store.Cascade)),
			notNull("public_key", store.TypeBlob),
			notNull("secret_key", store.TypeBlob),
			notNull("received_timestamp", store.TypeReal),
		},
		Unique: [][]string{{"thread_id", "public_key", "secret_key"}},
	},
	{
		Name: "group_member",
		Columns: []store.Column{
			required(ref("group_id", store.TypeText, "thread", "id", store.Cascade)),
			notNull("profile_id", store.TypeText),
			notNull("role", store.TypeInteger),
		},
		Unique: [][]string{{"group_id", "profile_id", "role"}},
	},
	{
		// No foreign key: an open group can exist before its thread does.
		Name: "open_group",
		Columns: []store.Column{
			pk(col("thread_id", store.TypeText)),
			notNull("server", store.TypeText),
			notNull("room_token", store.TypeText),
			notNull("public_key", store.TypeText),
			notNull("name", store.TypeText),
			flag("is_active"),
			col("room_description", store.TypeText),
			col("image_id", store.TypeText),
			col("image_data", store.TypeBlob),
			{Name: "user_count", Type: store.TypeInteger, NotNull: true, Default: "0"},
			{Name: "info_updates", Type: store.TypeInteger, NotNull: true, Default: "0"},
			col("last_message_server_id", store.TypeInteger),
			col("last_deletion_server_id", store.TypeInteger),
		},
	},
	{
		Name: "interaction",
		Columns: []store.Column{
			{Name: "id", Type: store.TypeInteger, PrimaryKey: true, AutoIncrement: true},
			col("server_hash", store.TypeText),
			col("message_uuid", store.TypeText),
			required(ref("thread_id", store.TypeText, "thread", "id", store.Cascade)),
			notNull("author_id", store.TypeText),
			notNull("variant", store.TypeInteger),
			col("body", store.TypeText),
			notNull("timestamp_ms", store.TypeInteger),
			notNull("received_at_timestamp_ms", store.TypeInteger),
			flag("was_read"),
			flag("has_mention"),
			col("expires_in_seconds", store.TypeReal),
			col("expires_started_at_ms", store.TypeReal),
			col("link_preview_url", store.TypeText),
			col("open_group_server_message_id", store.TypeInteger),
		},
		Unique: [][]string{
			{"thread_id", "author_id", "timestamp_ms"},
			{"thread_id", "server_hash"},
			{"thread_id", "message_uuid"},
			{"thread_id", "open_group_server_message_id"},
		},
	},
	{
		Name: "recipient_state",
		Columns: []store.Column{
			required(ref("interaction_id", store.TypeInteger, "interaction", "id", store.Cascade)),
			notNull("recipient_id", store.TypeText),
			notNull("state", store.TypeInteger),
			col("read_timestamp_ms", store.TypeInteger),
			col("most_recent_failure_text", store.TypeText),
		},
		PrimaryKey: []string{"interaction_id", "recipient_id"},
	},
	{
		Name: "attachment",
		Columns: []store.Column{
			pk(col("id", store.TypeText)),
			col("server_id", store.TypeText),
			notNull("variant", store.TypeInteger),
			notNull("state", store.TypeInteger),
			notNull("content_type", store.TypeText),
			{Name: "byte_count", Type: store.TypeInteger, NotNull: true, Default: "0"},
			col("creation_timestamp", store.TypeReal),
			col("source_filename", store.TypeText),
			col("download_url", store.TypeText),
			col("local_relative_file_path", store.TypeText),
			col("width", store.TypeInteger),
			col("height", store.TypeInteger),
			col("duration", store.TypeReal),
			flag("is_valid"),
			col("encryption_key", store.TypeBlob),
			col("digest", store.TypeBlob),
			col("caption", store.TypeText),
		},
	},
	{
		Name: "interaction_attachment",
		Columns: []store.Column{
			notNull("album_index", store.TypeInteger),
			required(ref("interaction_id", store.TypeInteger, "interaction", "id", store.Cascade)),
			required(ref("attachment_id", store.TypeText, "attachment", "id", store.Cascade)),
		},
		PrimaryKey: []string{"interaction_id", "attachment_id"},
	},
	{
		Name: "quote",
		Columns: []store.Column{
			pk(ref("interaction_id", store.TypeInteger, "interaction", "id", store.Cascade)),
			required(ref("author_id", store.TypeText, "profile", "id", store.NoAction)),
			notNull("timestamp_ms", store.TypeInteger),
			col("body", store.TypeText),
			ref("attachment_id", store.TypeText, "attachment", "id", store.SetNull),
		},
	},
	{
		Name: "link_preview",
		Columns: []store.Column{
			notNull("url", store.TypeText),
			notNull("timestamp", store.TypeReal),
			notNull("variant", store.TypeInteger),
			col("title", store.TypeText),
			ref("attachment_id", store.TypeText, "attachment", "id", store.NoAction),
		},
		PrimaryKey: []string{"url", "timestamp"},
	},
	{
		Name: "job",
		Columns: []store.Column{
			{Name: "id", Type: store.TypeInteger, PrimaryKey: true, AutoIncrement: true},
			{Name: "failure_count", Type: store.TypeInteger, NotNull: true, Default: "0"},
			notNull("variant", store.TypeInteger),
			notNull("behaviour", store.TypeInteger),
			{Name: "next_run_timestamp", Type: store.TypeReal, NotNull: true, Default: "0"},
			col("thread_id", store.TypeText),
			ref("interaction_id", store.TypeInteger, "interaction", "id", store.Cascade),
			col("details", store.TypeBlob),
		},
	},
	{
		Name: "control_message_process_record",
		Columns: []store.Column{
			notNull("thread_id", store.TypeText),
			notNull("variant", store.TypeInteger),
			notNull("timestamp_ms", store.TypeInteger),
			col("server_expiration_timestamp", store.TypeReal),
		},
		Unique: [][]string{{"thread_id", "variant", "timestamp_ms"}},
	},
}

var messagingIndexes = []store.Index{
	{Name: "thread_is_pinned", Table: "thread", Columns: []string{"is_pinned"}},
	{Name: "closed_group_key_pair_thread_id", Table: "closed_group_key_pair", Columns: []string{"thread_id"}},
	{Name: "group_member_group_id", Table: "group_member", Columns: []string{"group_id"}},
	{Name: "interaction_thread_id", Table: "interaction", Columns: []string{"thread_id"}},
	{Name: "interaction_author_id", Table: "interaction", Columns: []string{"author_id"}},
	{Name: "interaction_timestamp_ms", Table: "interaction", Columns: []string{"timestamp_ms"}},
	{Name: "interaction_attachment_attachment_id", Table: "interaction_attachment", Columns: []string{"attachment_id"}},
	{Name: "quote_attachment_id", Table: "quote", Columns: []string{"attachment_id"}},
	{Name: "job_thread_id", Table: "job", Columns: []string{"thread_id"}},
	{Name: "job_interaction_id", Table: "job", Columns: []string{"interaction_id"}},
	{Name: "job_next_run_timestamp", Table: "job", Columns: []string{"next_run_timestamp"}},
}

var messagingSearchIndexes = []store.SearchIndex{
	{Name: "profile_fts", Table: "profile", Columns: []string{"name", "nickname"}},
	{Name: "closed_group_fts", Table: "closed_group", Columns: []string{"name"}},
	{Name: "open_group_fts", Table: "open_group", Columns: []string{"name"}},
	{Name: "interaction_fts", Table: "interaction", Columns: []string{"body"}},
}

func createSettings(_ context.Context, env *migration.Env) error {
	return createTables(env.Tx.Schema(), settingsTables)
}

func createInitialSchema(_ context.Context, env *migration.Env) error {
	w := env.Tx.Schema()
	if err := createTables(w, messagingTables); err != nil {
		return err
	}
	for _, idx := range messagingIndexes {
		if err := w.CreateIndex(idx); err != nil {
			return err
		}
	}
	for _, idx := range messagingSearchIndexes {
		if err := w.CreateSearchIndex(idx); err != nil {
			return err
		}
	}
	return nil
}

func createTables(w *store.SchemaWriter, tables []store.TableDef) error {
	for _, def := range tables {
		if err := w.CreateTable(def); err != nil {
			return err
		}
	}
	return nil
}

func addThreadMarkedAsUnread(_ context.Context, env *migration.Env) error {
	return env.Tx.Schema().AddColumn("thread", flag("marked_as_unread"))
}

func resetOpenGroupInfoUpdates(_ context.Context, env *migration.Env) error {
	res, err := env.Tx.Exec("UPDATE open_group SET info_updates = 0")
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	env.Logger.Info("reset open group info updates", "open_groups", n)
	return nil
}

func rebuildInteractionSearch(_ context.Context, env *migration.Env) error {
	return env.Tx.Schema().RebuildSearchIndex("interaction_fts")
}
