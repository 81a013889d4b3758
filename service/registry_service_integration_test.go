package service_test

import (
	"context"
	"fmt"
	"testing"

	"guildbot/events"
	"guildbot/repository"
	"guildbot/repository/testutil"
	"guildbot/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestEnsureMember_ConcurrentFirstContact_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	registry := service.NewRegistryService(repository.NewUnitOfWorkFactory(testDB.DB, events.NewBus()), new(service.MockRosterOracle))

	const contacts = 8
	for round := 0; round < 5; round++ {
		t.Run(fmt.Sprintf("round %d", round), func(t *testing.T) {
			testDB.Truncate(t)

			var g errgroup.Group
			for i := 0; i < contacts; i++ {
				platformID := int64(1000 + i)
				g.Go(func() error {
					_, err := registry.EnsureMember(ctx, platformID, fmt.Sprintf("newcomer%d", platformID))
					return err
				})
			}
			require.NoError(t, g.Wait())

			var total, guildmasters int
			err := testDB.DB.QueryRow(ctx, `
				SELECT COUNT(*), COUNT(*) FILTER (WHERE is_guildmaster) FROM members
			`).Scan(&total, &guildmasters)
			require.NoError(t, err)
			assert.Equal(t, contacts, total)
			assert.Equal(t, 1, guildmasters)
		})
	}
}
