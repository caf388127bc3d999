package etl

import "github.com/sessionvault/legacymigrate/internal/legacy"

// Setting keys written by the import.
const (
	SettingNotificationPreviewType   = "preferencesNotificationPreviewType"
	SettingDefaultNotificationSound  = "defaultNotificationSound"
	SettingLastRecordedPushToken     = "lastRecordedPushToken"
	SettingLastRecordedVoipToken     = "lastRecordedVoipToken"
	SettingAppSwitcherPreviewEnabled = "preferencesAppSwitcherPreviewEnabled"
	SettingReadReceiptsEnabled       = "areReadReceiptsEnabled"
	SettingTypingIndicatorsEnabled   = "typingIndicatorsEnabled"
	SettingLinkPreviewsEnabled       = "areLinkPreviewsEnabled"
	SettingCallsEnabled              = "areCallsEnabled"
	SettingScreenLockEnabled         = "isScreenLockEnabled"
	SettingScreenLockTimeoutSeconds  = "screenLockTimeoutSeconds"
	SettingHasHiddenMessageRequests  = "hasHiddenMessageRequests"
)

// Notification preview types, in legacy numbering.
const (
	NotificationPreviewNameAndContent  = 1
	NotificationPreviewNameOnly        = 2
	NotificationPreviewNoNameNoContent = 3
)

// DefaultNotificationSound is used when the legacy store has no sound or a
// non-positive one.
const DefaultNotificationSound = 1008

const defaultScreenLockTimeoutSeconds = 15 * 60

type boolPreference struct {
	setting    string
	collection string
	key        string
}

var boolPreferences = []boolPreference{
	{SettingReadReceiptsEnabled, legacy.ReadReceiptCollection, legacy.ReadReceiptsEnabledKey},
	{SettingTypingIndicatorsEnabled, legacy.TypingIndicatorsCollection, legacy.TypingIndicatorsEnabledKey},
	{SettingLinkPreviewsEnabled, legacy.PreferencesCollection, legacy.PreferenceAreLinkPreviewsEnabled},
	{SettingCallsEnabled, legacy.PreferencesCollection, legacy.PreferenceAreCallsEnabled},
	{SettingScreenLockEnabled, legacy.ScreenLockCollection, legacy.ScreenLockEnabledKey},
}

// migratePreferences writes the typed settings derived from legacy
// preferences. Missing or mistyped preferences take their defaults.
func (r *run) migratePreferences() error {
	set := func(err error) error {
		if err == nil {
			r.summary.Settings++
		}
		return err
	}

	previewType := NotificationPreviewNameAndContent
	var storedPreview int
	found, err := r.optionalValue(legacy.PreferencesCollection, legacy.PreferenceNotificationPreviewType, &storedPreview)
	if err != nil {
		return err
	}
	if found && storedPreview >= NotificationPreviewNameAndContent && storedPreview <= NotificationPreviewNoNameNoContent {
		previewType = storedPreview
	}
	if err := set(r.tx.SetIntSetting(SettingNotificationPreviewType, previewType)); err != nil {
		return err
	}

	sound := DefaultNotificationSound
	var storedSound int
	found, err = r.optionalValue(legacy.SoundsCollection, legacy.SoundsGlobalNotificationKey, &storedSound)
	if err != nil {
		return err
	}
	if found && storedSound > 0 {
		sound = storedSound
	}
	if err := set(r.tx.SetIntSetting(SettingDefaultNotificationSound, sound)); err != nil {
		return err
	}

	for _, token := range []struct{ setting, key string }{
		{SettingLastRecordedPushToken, legacy.PreferenceLastRecordedPushToken},
		{SettingLastRecordedVoipToken, legacy.PreferenceLastRecordedVoipToken},
	} {
		var value string
		found, err := r.optionalValue(legacy.PreferencesCollection, token.key, &value)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := set(r.tx.SetSetting(token.setting, value)); err != nil {
			return err
		}
	}

	// The legacy flag disabled the preview; the setting enables it and is
	// only on when the flag was explicitly cleared.
	var screenSecurityDisabled bool
	found, err = r.optionalValue(legacy.PreferencesCollection, legacy.PreferenceScreenSecurityDisabled, &screenSecurityDisabled)
	if err != nil {
		return err
	}
	if err := set(r.tx.SetBoolSetting(SettingAppSwitcherPreviewEnabled, found && !screenSecurityDisabled)); err != nil {
		return err
	}

	for _, p := range boolPreferences {
		var value bool
		if _, err := r.optionalValue(p.collection, p.key, &value); err != nil {
			return err
		}
		if err := set(r.tx.SetBoolSetting(p.setting, value)); err != nil {
			return err
		}
	}

	timeout, err := r.screenLockTimeout()
	if err != nil {
		return err
	}
	if err := set(r.tx.SetIntSetting(SettingScreenLockTimeoutSeconds, timeout)); err != nil {
		return err
	}

	return set(r.tx.SetBoolSetting(SettingHasHiddenMessageRequests, r.opts.HasHiddenMessageRequests))
}

// screenLockTimeout reads the screen lock timeout, which was written both
// as a real and as an integer.
func (r *run) screenLockTimeout() (int, error) {
	var seconds float64
	found, err := r.optionalValue(legacy.ScreenLockCollection, legacy.ScreenLockTimeoutSecondsKey, &seconds)
	if err != nil {
		return 0, err
	}
	if found {
		return int(seconds), nil
	}
	var whole int64
	found, err = r.optionalValue(legacy.ScreenLockCollection, legacy.ScreenLockTimeoutSecondsKey, &whole)
	if err != nil {
		return 0, err
	}
	if found {
		return int(whole), nil
	}
	return defaultScreenLockTimeoutSeconds, nil
}
