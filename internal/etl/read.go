package etl

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sessionvault/legacymigrate/internal/legacy"
)

// legacyData is what the read pass buffers before any row is written.
// Interactions are indexed by header only and decoded per thread.
type legacyData struct {
	contacts []*legacy.Contact
	// visibleContactThreads holds legacy keys of contact threads the user
	// can see.
	visibleContactThreads map[string]bool
	threads               []*threadPlan
	// interactions maps a legacy thread key to its interactions in
	// conversation order.
	interactions map[string][]interactionRef
	// readReceipts maps a contact id to the message timestamps whose read
	// receipts are still to be sent.
	readReceipts map[string][]int64
}

type interactionRef struct {
	key    string
	sortID uint64
}

// read runs the read pass. Every undecodable required record is collected
// and reported together once the pass completes.
func (r *run) read() (*legacyData, error) {
	data := &legacyData{
		visibleContactThreads: make(map[string]bool),
		interactions:          make(map[string][]interactionRef),
		readReceipts:          make(map[string][]int64),
	}
	var errs []error

	errs = append(errs, r.enumerate(legacy.ContactCollection, func(_ string, obj legacy.Object) error {
		c, ok := obj.(*legacy.Contact)
		if !ok {
			return fmt.Errorf("unexpected record %T", obj)
		}
		data.contacts = append(data.contacts, c)
		return nil
	}))

	groupKeys, err := r.keys(legacy.ClosedGroupPublicKeyCollection)
	if err != nil {
		return nil, err
	}
	errs = append(errs, r.enumerate(legacy.ThreadCollection, func(key string, obj legacy.Object) error {
		th, ok := obj.(*legacy.Thread)
		if !ok {
			return fmt.Errorf("unexpected record %T", obj)
		}
		// Contact threads that were started but never used stay hidden.
		if strings.HasPrefix(key, legacy.ContactThreadPrefix) && th.ShouldBeVisible {
			data.visibleContactThreads[key] = true
		}
		plan, err := r.planThread(th, groupKeys)
		if err != nil {
			return err
		}
		data.threads = append(data.threads, plan)
		return nil
	}))
	slices.SortFunc(data.threads, func(a, b *threadPlan) int { return strings.Compare(a.key, b.key) })

	err = r.reader.Enumerate(legacy.InteractionCollection, func(key string, raw []byte) bool {
		h, err := legacy.PeekInteraction(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", legacy.InteractionCollection, key, err))
			return true
		}
		data.interactions[h.UniqueThreadID] = append(data.interactions[h.UniqueThreadID], interactionRef{key: key, sortID: h.SortID})
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", legacy.InteractionCollection, err)
	}
	for _, refs := range data.interactions {
		slices.SortStableFunc(refs, func(a, b interactionRef) int { return cmp.Compare(a.sortID, b.sortID) })
	}

	err = r.reader.Enumerate(legacy.OutgoingReadReceiptCollection, func(key string, raw []byte) bool {
		var timestamps []int64
		if err := legacy.DecodeValue(raw, &timestamps); err != nil {
			r.logger.Debug("ignoring undecodable read receipts", "key", key, "error", err)
			return true
		}
		data.readReceipts[key] = append(data.readReceipts[key], timestamps...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", legacy.OutgoingReadReceiptCollection, err)
	}

	var received []uint64
	if _, err := r.optionalValue(legacy.ReceivedMessageTimestampsCollection, legacy.ReceivedMessageTimestampsKey, &received); err != nil {
		return nil, err
	}
	for _, ts := range received {
		r.ids.received[ts] = true
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("read legacy store: %w", err)
	}
	r.logger.Info("read legacy store",
		"contacts", len(data.contacts),
		"threads", len(data.threads),
		"interaction_threads", len(data.interactions))
	return data, nil
}

// enumerate decodes every record of collection and hands it to fn. Decode
// failures and errors from fn do not stop the enumeration; they are returned
// joined once it completes.
func (r *run) enumerate(collection string, fn func(key string, obj legacy.Object) error) error {
	var errs []error
	err := r.reader.Enumerate(collection, func(key string, raw []byte) bool {
		obj, err := legacy.Decode(raw)
		if err == nil {
			err = fn(key, obj)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", collection, key, err))
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("enumerate %s: %w", collection, err)
	}
	return errors.Join(errs...)
}

// keys returns the set of keys in collection.
func (r *run) keys(collection string) (map[string]bool, error) {
	keys := make(map[string]bool)
	err := r.reader.Enumerate(collection, func(key string, _ []byte) bool {
		keys[key] = true
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", collection, err)
	}
	return keys, nil
}
