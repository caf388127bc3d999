package etl

import (
	"github.com/sessionvault/legacymigrate/internal/legacy"
	"github.com/sessionvault/legacymigrate/internal/store"
	"github.com/sessionvault/legacymigrate/internal/textutil"
)

// migrateContacts gives every legacy contact a profile and promotes the ones
// the user actually interacted with to contacts.
func (r *run) migrateContacts(data *legacyData) error {
	for _, c := range data.contacts {
		isCurrentUser := c.SessionID == r.localKey

		name := c.SessionID
		if c.Name != nil {
			if cleaned := textutil.CleanString(*c.Name); cleaned != "" {
				name = cleaned
			}
		}
		profile := &store.Profile{
			ID:                     c.SessionID,
			Name:                   name,
			Nickname:               textutil.CleanOptional(c.Nickname),
			ProfilePictureURL:      c.ProfilePictureURL,
			ProfilePictureFileName: c.ProfilePictureFileName,
		}
		if c.ProfileEncryptionKey != nil {
			profile.ProfileEncryptionKey = c.ProfileEncryptionKey.KeyData
		}
		if err := r.tx.InsertProfile(profile); err != nil {
			return err
		}
		r.ids.profiles[c.SessionID] = true
		r.summary.Profiles++

		if !shouldPromote(c, isCurrentUser, data.visibleContactThreads) {
			continue
		}
		err := r.tx.InsertContact(&store.Contact{
			ID:             c.SessionID,
			IsTrusted:      isCurrentUser || c.IsTrusted,
			IsApproved:     isCurrentUser || c.IsApproved,
			IsBlocked:      !isCurrentUser && c.IsBlocked,
			DidApproveMe:   isCurrentUser || c.DidApproveMe,
			HasBeenBlocked: !isCurrentUser && (c.HasBeenBlocked || c.IsBlocked),
		})
		if err != nil {
			return err
		}
		r.summary.Contacts++
	}
	return nil
}

// shouldPromote reports whether a legacy contact becomes a contact row
// rather than only a profile.
func shouldPromote(c *legacy.Contact, isCurrentUser bool, visibleContactThreads map[string]bool) bool {
	return isCurrentUser ||
		visibleContactThreads[legacy.ContactThreadKey(c.SessionID)] ||
		c.IsApproved ||
		c.DidApproveMe ||
		c.IsBlocked ||
		c.HasBeenBlocked
}
