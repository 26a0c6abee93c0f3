package store_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inovacc/repoload/internal/store"
	"github.com/inovacc/repoload/internal/store/storetest"
)

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "catalog.db"))
		require.NoError(t, err)

		return s
	})
}

func TestBoltConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := store.Open(store.DriverBolt, filepath.Join(t.TempDir(), "catalog.bolt"))
		require.NoError(t, err)

		return s
	})
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := store.Open("postgres", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
}

func TestBolt_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.bolt")

	s, err := store.NewBolt(path)
	require.NoError(t, err)

	group, err := s.CreateGroup(t.Context(), store.CreateGroupParams{Name: "chaoss"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = store.NewBolt(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetGroupByName(t.Context(), "chaoss")
	require.NoError(t, err)
	require.Equal(t, group.ID, got.ID)

	groups, err := s.ListGroups(t.Context())
	require.NoError(t, err)
	require.Len(t, groups, 3, "reserved groups must not be seeded twice")
}
