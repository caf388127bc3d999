package etl

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sessionvault/legacymigrate/internal/legacy"
	"github.com/sessionvault/legacymigrate/internal/store"
	"github.com/sessionvault/legacymigrate/internal/textutil"
)

// Disappearing messages default for threads without a stored configuration.
const defaultDisappearingDurationSeconds = 24 * 60 * 60

// threadPlan is a legacy thread with its resolved id and the auxiliary
// records its children are built from.
type threadPlan struct {
	key    string
	thread *legacy.Thread
	id     string
	closed *closedGroupPlan
	open   *openGroupPlan
}

type closedGroupPlan struct {
	publicKey string
	formation uint64
	zombies   []string
	keyPairs  []receivedKeyPair
}

type receivedKeyPair struct {
	receivedAt float64
	pair       *legacy.KeyPair
}

type openGroupPlan struct {
	info                 *legacy.OpenGroupInfo
	userCount            int64
	image                []byte
	lastMessageServerID  *int64
	lastDeletionServerID *int64
}

// planThread resolves the thread id and reads the group records of th.
// groupKeys is the set of closed group public keys the local user holds.
func (r *run) planThread(th *legacy.Thread, groupKeys map[string]bool) (*threadPlan, error) {
	plan := &threadPlan{key: th.UniqueID, thread: th}

	switch th.Variant {
	case legacy.ThreadContact:
		id, ok := strings.CutPrefix(th.UniqueID, legacy.ContactThreadPrefix)
		if !ok || id == "" {
			return nil, fmt.Errorf("contact thread key %q has no %q prefix", th.UniqueID, legacy.ContactThreadPrefix)
		}
		plan.id = id

	case legacy.ThreadClosedGroup:
		publicKey, err := legacy.ClosedGroupPublicKey(th.UniqueID)
		if err != nil {
			return nil, err
		}
		if isGroupMember(th.Group, r.localKey) && !groupKeys[publicKey] {
			return nil, fmt.Errorf("closed group %s: local user is a member but the group public key is unknown", publicKey)
		}
		plan.id = publicKey
		if plan.closed, err = r.readClosedGroup(publicKey); err != nil {
			return nil, err
		}

	case legacy.ThreadOpenGroup:
		obj, found, err := r.decodeRecord(legacy.OpenGroupCollection, th.UniqueID)
		if err != nil {
			return nil, err
		}
		info, ok := obj.(*legacy.OpenGroupInfo)
		if !found || !ok {
			return nil, fmt.Errorf("open group thread %s has no open group record", th.UniqueID)
		}
		plan.id = info.ID()
		if plan.open, err = r.readOpenGroup(info); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("thread %s: unsupported variant %v", th.UniqueID, th.Variant)
	}

	r.ids.threads[plan.key] = plan.id
	return plan, nil
}

func isGroupMember(g *legacy.GroupModel, id string) bool {
	if g == nil {
		return false
	}
	return slices.Contains(g.MemberIDs, id) || slices.Contains(g.AdminIDs, id)
}

func (r *run) readClosedGroup(publicKey string) (*closedGroupPlan, error) {
	cg := &closedGroupPlan{publicKey: publicKey}
	if _, err := r.optionalValue(legacy.ClosedGroupFormationTimestampCollection, publicKey, &cg.formation); err != nil {
		return nil, err
	}
	if _, err := r.optionalValue(legacy.ClosedGroupZombieMembersCollection, publicKey, &cg.zombies); err != nil {
		return nil, err
	}
	slices.Sort(cg.zombies)

	// A user who left the group has no key pairs; the group is still
	// migrated so its history stays readable.
	collection := legacy.ClosedGroupKeyPairCollectionPrefix + publicKey
	err := r.reader.Enumerate(collection, func(key string, raw []byte) bool {
		receivedAt, err := strconv.ParseFloat(key, 64)
		if err != nil {
			r.logger.Debug("ignoring key pair with invalid timestamp", "group", publicKey, "key", key)
			return true
		}
		obj, err := legacy.Decode(raw)
		pair, ok := obj.(*legacy.KeyPair)
		if err != nil || !ok || len(pair.PublicKey) == 0 || len(pair.PrivateKey) == 0 {
			r.logger.Debug("ignoring unusable key pair", "group", publicKey, "key", key, "error", err)
			return true
		}
		cg.keyPairs = append(cg.keyPairs, receivedKeyPair{receivedAt: receivedAt, pair: pair})
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", collection, err)
	}
	slices.SortStableFunc(cg.keyPairs, func(a, b receivedKeyPair) int { return cmp.Compare(a.receivedAt, b.receivedAt) })
	return cg, nil
}

func (r *run) readOpenGroup(info *legacy.OpenGroupInfo) (*openGroupPlan, error) {
	og := &openGroupPlan{info: info}
	id := info.ID()
	if _, err := r.optionalValue(legacy.OpenGroupUserCountCollection, id, &og.userCount); err != nil {
		return nil, err
	}
	if _, err := r.optionalValue(legacy.OpenGroupImageCollection, id, &og.image); err != nil {
		return nil, err
	}
	var serverID int64
	found, err := r.optionalValue(legacy.OpenGroupLastMessageServerIDCollection, id, &serverID)
	if err != nil {
		return nil, err
	}
	if found {
		og.lastMessageServerID = &serverID
	}
	var deletionID int64
	found, err = r.optionalValue(legacy.OpenGroupLastDeletionServerIDCollection, id, &deletionID)
	if err != nil {
		return nil, err
	}
	if found {
		og.lastDeletionServerID = &deletionID
	}
	return og, nil
}

// migrateThread writes the thread row, its children and its interactions.
func (r *run) migrateThread(plan *threadPlan, refs []interactionRef) error {
	th := plan.thread
	row := &store.Thread{
		ID:                    plan.id,
		Variant:               threadVariant(th.Variant),
		CreationDateTimestamp: unixSeconds(th.CreationDate),
		ShouldBeVisible:       th.ShouldBeVisible,
		IsPinned:              th.IsPinned,
		OnlyNotifyForMentions: th.OnlyNotifyForMentions,
	}
	if draft := textutil.CleanString(th.MessageDraft); draft != "" {
		row.MessageDraft = &draft
	}
	if th.MutedUntil != nil {
		muted := unixSeconds(*th.MutedUntil)
		row.MutedUntilTimestamp = &muted
	}
	if err := r.tx.InsertThread(row); err != nil {
		return err
	}
	r.summary.Threads++

	if err := r.migrateDisappearingConfig(plan); err != nil {
		return err
	}
	if plan.closed != nil {
		if err := r.migrateClosedGroup(plan); err != nil {
			return err
		}
	}
	if plan.open != nil {
		if err := r.migrateOpenGroup(plan); err != nil {
			return err
		}
	}
	return r.migrateInteractions(plan, refs)
}

func (r *run) migrateDisappearingConfig(plan *threadPlan) error {
	cfg := &store.DisappearingConfig{
		ThreadID:        plan.id,
		DurationSeconds: defaultDisappearingDurationSeconds,
	}
	obj, found, err := r.decodeRecord(legacy.DisappearingConfigCollection, plan.key)
	switch {
	case err != nil:
		r.warn("undecodable disappearing messages configuration, using default", "thread", plan.id, "error", err)
	case found:
		if legacyCfg, ok := obj.(*legacy.DisappearingConfig); ok {
			cfg.IsEnabled = legacyCfg.IsEnabled
			cfg.DurationSeconds = float64(legacyCfg.DurationSeconds)
		} else {
			r.warn("unexpected disappearing messages configuration record, using default", "thread", plan.id)
		}
	}
	return r.tx.InsertDisappearingConfig(cfg)
}

func (r *run) migrateClosedGroup(plan *threadPlan) error {
	cg := plan.closed
	err := r.tx.InsertClosedGroup(&store.ClosedGroup{
		ThreadID:           plan.id,
		Name:               textutil.CleanString(plan.thread.Group.Name()),
		FormationTimestamp: float64(cg.formation),
	})
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(cg.keyPairs))
	for _, kp := range cg.keyPairs {
		pairKey := string(kp.pair.PublicKey) + "\x00" + string(kp.pair.PrivateKey)
		if seen[pairKey] {
			continue
		}
		seen[pairKey] = true
		err := r.tx.InsertClosedGroupKeyPair(&store.ClosedGroupKeyPair{
			ThreadID:          plan.id,
			PublicKey:         kp.pair.PublicKey,
			SecretKey:         kp.pair.PrivateKey,
			ReceivedTimestamp: kp.receivedAt,
		})
		if err != nil {
			return err
		}
	}

	var members []store.GroupMember
	members = appendMembers(members, plan.id, plan.thread.Group.MemberIDs, store.RoleStandard)
	members = appendMembers(members, plan.id, plan.thread.Group.AdminIDs, store.RoleAdmin)
	members = appendMembers(members, plan.id, cg.zombies, store.RoleZombie)
	return r.tx.InsertGroupMembers(members)
}

// appendMembers adds one member row per distinct id.
func appendMembers(members []store.GroupMember, groupID string, ids []string, role store.GroupMemberRole) []store.GroupMember {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, store.GroupMember{GroupID: groupID, ProfileID: id, Role: role})
	}
	return members
}

func (r *run) migrateOpenGroup(plan *threadPlan) error {
	og := plan.open
	return r.tx.InsertOpenGroup(&store.OpenGroup{
		ThreadID:             plan.id,
		Server:               og.info.Server,
		RoomToken:            og.info.Room,
		PublicKey:            og.info.PublicKey,
		Name:                 textutil.CleanString(og.info.Name),
		IsActive:             true,
		ImageID:              og.info.ImageID,
		ImageData:            og.image,
		UserCount:            og.userCount,
		LastMessageServerID:  og.lastMessageServerID,
		LastDeletionServerID: og.lastDeletionServerID,
	})
}

func threadVariant(v legacy.ThreadVariant) store.ThreadVariant {
	switch v {
	case legacy.ThreadClosedGroup:
		return store.ThreadClosedGroup
	case legacy.ThreadOpenGroup:
		return store.ThreadOpenGroup
	default:
		return store.ThreadContact
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
