// Package authcore implements the credential lifecycle and token issuance
// engine for account-based services: password hashing and verification,
// symmetric encryption for auxiliary secrets, signed access/refresh token
// issuance, account registration, and the per-request authentication gate.
//
// Account lifecycle:
//   - Accounts carry an AccountStatus persisted via Bun. Statuses cover
//     active, inactive, and suspended flows; AccountStateMachine centralizes
//     the transition graph, timestamps, and persistence. Invoke Transition
//     with ActorRef metadata whenever an operator moves an account.
//
// Tokens:
//   - TokenService signs access and refresh tokens with separate HMAC
//     secrets, so a compromised secret of one kind cannot forge the other.
//     Verification failures are distinguishable: expired, malformed, or an
//     internal fault.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by registration,
//     login, and the state machine. Sinks run best-effort (errors are
//     logged) so you can forward to a database or queue without blocking
//     authentication.
package authcore
