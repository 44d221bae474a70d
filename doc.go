// Package gateway is a thin HTTP layer that validates requests and forwards
// authentication and profile operations to a hosted identity backend.
//
// Validation:
//   - Request shapes implement Payload. Validate[T] decodes T from the body,
//     query or path params, runs its rules and hands the normalized value to
//     the next handler through WithPayload. Failures are written as a list of
//     field violations and never reach the handler.
//
// Auth guard:
//   - RequireAuth reads a bearer token and asks the IdentityClient who owns
//     it. A missing token or a token the backend refuses is a 401, a backend
//     that cannot answer is a 500. Accepted requests carry a Principal.
//
// Registration:
//   - RegisterAccountHandler creates the profile, its account settings and
//     finally the identity account as a Saga. When a step fails the rows
//     already written are deleted in reverse order, compensation failures are
//     reported in the returned error metadata.
//
// Backends live in provider/supabase (GoTrue and PostgREST) and repository
// (a Bun store for local use).
package gateway
