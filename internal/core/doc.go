// Package core registers repositories and organizations in the catalog.
//
// A [Controller] sits between the transports (CLI, web API) and the
// catalog [store.Store]. It validates submitted URLs, expands organizations
// through a [resolver.Resolver], upserts catalog rows and records group
// memberships.
//
// # Frontend Operations
//
// [Controller.AddFrontendRepo] and [Controller.AddFrontendOrg] never return
// expected failures as errors. They report a [Result] whose Status is one of
// the fixed boundary strings, and an error only when storage fails.
//
// # CLI Operations
//
// [Controller.AddCLIRepo] and [Controller.AddCLIOrg] return errors that
// [KindOf] classifies, so batch loaders can log a line and move on.
package core
