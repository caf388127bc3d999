// Package migrations declares the ordered migration units for every target.
package migrations

import (
	"context"
	"time"

	"github.com/sessionvault/legacymigrate/internal/etl"
	"github.com/sessionvault/legacymigrate/internal/legacy"
	"github.com/sessionvault/legacymigrate/internal/migration"
)

// Migration targets, applied in this order.
const (
	TargetUtilities = "utilities"
	TargetMessaging = "messaging"
)

// Deps are the collaborators the data units need.
type Deps struct {
	// Legacy is the legacy store to import. When nil the import unit
	// completes without importing anything, which is what a fresh install
	// with no legacy data needs.
	Legacy legacy.Reader
	Import etl.Options
	// OnImport receives the import summary. It is called before the unit
	// commits.
	OnImport func(*etl.Summary)
}

// All returns every unit in application order.
func All(deps Deps) []migration.Unit {
	return []migration.Unit{
		{
			Target:     TargetUtilities,
			Identifier: "001_CreateSettings",
			Migrate:    createSettings,
		},
		{
			Target:     TargetMessaging,
			Identifier: "001_InitialSchema",
			Migrate:    createInitialSchema,
		},
		{
			Target:                 TargetMessaging,
			Identifier:             "002_LegacyStoreImport",
			MinExpectedRunDuration: 5 * time.Second,
			RequiresConfigSync:     true,
			Migrate:                importLegacyStore(deps),
		},
		{
			Target:     TargetMessaging,
			Identifier: "003_AddThreadMarkedAsUnread",
			Migrate:    addThreadMarkedAsUnread,
		},
		{
			Target:     TargetMessaging,
			Identifier: "004_ResetOpenGroupInfoUpdates",
			Migrate:    resetOpenGroupInfoUpdates,
		},
		{
			Target:     TargetMessaging,
			Identifier: "005_RebuildInteractionSearch",
			Migrate:    rebuildInteractionSearch,
		},
	}
}

func importLegacyStore(deps Deps) func(context.Context, *migration.Env) error {
	return func(ctx context.Context, env *migration.Env) error {
		if deps.Legacy == nil {
			env.Logger.Info("no legacy store configured, nothing to import")
			return nil
		}
		t, err := etl.New(deps.Legacy, deps.Import, env.Logger)
		if err != nil {
			return err
		}
		summary, err := t.Run(ctx, env)
		if err != nil {
			return err
		}
		if deps.OnImport != nil {
			deps.OnImport(summary)
		}
		return nil
	}
}
