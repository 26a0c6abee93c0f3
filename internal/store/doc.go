// Package store provides the catalog storage abstraction.
//
// The [Store] interface covers repository upserts, group membership, repo
// groups and per-actor group names. Two backends implement it:
//
//   - SQLite (default), see [NewSQLite]. Upserts are a single
//     INSERT ... ON CONFLICT statement against a unique URL index.
//   - bbolt, see [NewBolt]. Every check-then-put runs in one write
//     transaction, which bbolt serializes.
//
// Use [Open] to select a backend by driver name:
//
//	s, err := store.Open(store.DriverSQLite, path)
//	res, err := s.UpsertRepo(ctx, store.UpsertRepoParams{URL: url, GroupID: 1, Source: "CLI"})
//
// Both backends seed the reserved groups on first open and return errors
// wrapping [ErrNotFound] and [ErrConflict].
package store
