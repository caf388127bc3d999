// Package dataset generates synthetic legacy stores for development and
// for exercising the migrator against realistic volumes.
package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"regexp"
	"time"

	"howett.net/plist"

	"github.com/sessionvault/legacymigrate/internal/legacy"
	"github.com/sessionvault/legacymigrate/internal/legacy/legacytest"
)

var validDatasetName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateDatasetName checks that name contains only safe characters [a-zA-Z0-9_-].
// Dataset names become file names.
func ValidateDatasetName(name string) error {
	if name == "" {
		return fmt.Errorf("dataset name must not be empty")
	}
	if !validDatasetName.MatchString(name) {
		return fmt.Errorf("dataset name %q contains invalid characters; only letters, digits, hyphens, and underscores are allowed", name)
	}
	return nil
}

// Spec describes the store to generate.
type Spec struct {
	Contacts          int
	ClosedGroups      int
	MessagesPerThread int
	// LocalUserPublicKey is the owner of the store; outgoing messages are
	// theirs. Defaults to LocalKey.
	LocalUserPublicKey string
	// Seed makes message bodies reproducible.
	Seed uint64
}

// LocalKey is the default local user identity.
var LocalKey = sessionID(0)

// Validate rejects specs that would produce an empty or nonsensical store.
func (s Spec) Validate() error {
	switch {
	case s.Contacts <= 0:
		return fmt.Errorf("contacts must be positive, got %d", s.Contacts)
	case s.ClosedGroups < 0:
		return fmt.Errorf("closed groups must not be negative, got %d", s.ClosedGroups)
	case s.MessagesPerThread < 0:
		return fmt.Errorf("messages per thread must not be negative, got %d", s.MessagesPerThread)
	case s.ClosedGroups > 0 && s.Contacts < 2:
		return errors.New("closed groups need at least two contacts")
	}
	return nil
}

// Result summarizes a generated store.
type Result struct {
	Contacts     int
	Threads      int
	Interactions int
	Elapsed      time.Duration
	Size         int64
}

func sessionID(n uint64) string {
	return fmt.Sprintf("05%064x", n)
}

var words = []string{
	"lunch", "tomorrow", "meeting", "photos", "café", "weekend", "train",
	"late", "thanks", "call", "later", "ok", "sounds", "good", "naïve", "plan",
}

type builder struct {
	spec   Spec
	store  *legacytest.Store
	rng    *rand.Rand
	sortID uint64
	sentMs uint64
	result Result
}

// Build generates the store in memory.
func Build(spec Spec) (*legacytest.Store, *Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}
	if spec.LocalUserPublicKey == "" {
		spec.LocalUserPublicKey = LocalKey
	}
	b := &builder{
		spec:   spec,
		store:  legacytest.New(),
		rng:    rand.New(rand.NewPCG(spec.Seed, spec.Seed^0x5e55)),
		sentMs: uint64(legacytest.Epoch.UnixMilli()),
	}

	contacts := make([]string, spec.Contacts)
	for i := range contacts {
		contacts[i] = sessionID(uint64(i + 1))
		if err := b.addContact(contacts[i], i); err != nil {
			return nil, nil, err
		}
	}
	for g := range spec.ClosedGroups {
		members := []string{spec.LocalUserPublicKey, contacts[g%len(contacts)], contacts[(g+1)%len(contacts)]}
		if err := b.addClosedGroup(sessionID(1<<32+uint64(g)), g, members); err != nil {
			return nil, nil, err
		}
	}
	return b.store, &b.result, nil
}

// Generate writes a generated store to a new bbolt file at path.
func Generate(path string, spec Spec) (*Result, error) {
	start := time.Now()
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("destination already exists: %s", path)
	}
	src, result, err := Build(spec)
	if err != nil {
		return nil, err
	}
	if err := src.WriteBolt(path); err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err == nil {
		result.Size = info.Size()
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

func (b *builder) put(collection, key string, rec legacytest.Record) error {
	raw, err := legacytest.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	b.store.Put(collection, key, raw)
	return nil
}

func (b *builder) putValue(collection, key string, v any) error {
	raw, err := plist.Marshal(v, plist.BinaryFormat)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	b.store.Put(collection, key, raw)
	return nil
}

func (b *builder) addContact(id string, index int) error {
	if err := b.put(legacy.ContactCollection, id, legacytest.Contact(id)); err != nil {
		return err
	}
	b.result.Contacts++

	threadKey := legacy.ContactThreadKey(id)
	if err := b.put(legacy.ThreadCollection, threadKey, legacytest.ContactThread(id)); err != nil {
		return err
	}
	b.result.Threads++

	if index%5 == 4 {
		if err := b.put(legacy.DisappearingConfigCollection, threadKey, legacytest.DisappearingConfig(threadKey, true, 86400)); err != nil {
			return err
		}
	}

	for i := range b.spec.MessagesPerThread {
		msgID := b.nextID()
		var rec legacytest.Record
		if i%2 == 0 {
			rec = legacytest.IncomingMessage(msgID, threadKey, b.sortID, b.sentMs, id, b.body())
		} else {
			rec = legacytest.OutgoingMessage(msgID, threadKey, b.sortID, b.sentMs, b.body(),
				map[string]int{id: legacy.RecipientSent})
		}
		if err := b.addInteraction(rec); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) addClosedGroup(groupKey string, index int, members []string) error {
	threadKey := legacy.ClosedGroupThreadKey(groupKey)
	name := fmt.Sprintf("Group %d", index+1)
	if err := b.put(legacy.ThreadCollection, threadKey, legacytest.ClosedGroupThread(groupKey, name, members, members[1:2])); err != nil {
		return err
	}
	b.result.Threads++

	if err := b.putValue(legacy.ClosedGroupPublicKeyCollection, groupKey, groupKey); err != nil {
		return err
	}
	if err := b.putValue(legacy.ClosedGroupFormationTimestampCollection, groupKey, b.sentMs/1000); err != nil {
		return err
	}
	pair := legacytest.KeyPair([]byte(groupKey+"-public"), []byte(groupKey+"-secret"))
	if err := b.put(legacy.ClosedGroupKeyPairCollectionPrefix+groupKey, fmt.Sprintf("%d", b.sentMs/1000), pair); err != nil {
		return err
	}

	createdID := b.nextID()
	created := legacytest.InfoMessage(createdID, threadKey, b.sortID, b.sentMs, legacy.InfoGroupCreated)
	if err := b.addInteraction(created); err != nil {
		return err
	}
	for i := range b.spec.MessagesPerThread {
		author := members[1+i%(len(members)-1)]
		msgID := b.nextID()
		rec := legacytest.IncomingMessage(msgID, threadKey, b.sortID, b.sentMs, author, b.body())
		if err := b.addInteraction(rec); err != nil {
			return err
		}
	}
	return nil
}

// nextID advances the sort id and clock and returns a fresh unique id. Call
// it before reading b.sortID or b.sentMs for the same message.
func (b *builder) nextID() string {
	b.sortID++
	b.sentMs += 60_000 + uint64(b.rng.IntN(1000))
	return fmt.Sprintf("msg-%d", b.sortID)
}

func (b *builder) addInteraction(rec legacytest.Record) error {
	if err := b.put(legacy.InteractionCollection, rec["uniqueId"].(string), rec); err != nil {
		return err
	}
	b.result.Interactions++
	return nil
}

func (b *builder) body() string {
	n := 2 + b.rng.IntN(8)
	out := make([]byte, 0, n*8)
	for i := range n {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, words[b.rng.IntN(len(words))]...)
	}
	return string(out)
}
