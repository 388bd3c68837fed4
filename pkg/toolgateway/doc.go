// Package toolgateway is the boundary between the interview orchestrator and
// its collaborators: a registry of named, schema-validated operations and a
// typed client over it.
//
// Invariants:
//   - Tool names are unique.
//   - Parameters are validated against the tool's JSON Schema before the handler runs.
//   - Every call is bounded by the executor timeout.
//
// Usage:
//
//	exec := toolgateway.New(logger, time.Minute)
//	_ = toolgateway.RegisterCatalogue(exec, toolgateway.Deps{Store: repo, Profession: gen, Jobs: jobs})
//	client := toolgateway.NewClient(exec)
//	sessions, err := client.GetAllUserSessions(ctx, "user-1")
package toolgateway
