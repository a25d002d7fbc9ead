// Package registration implements a multi-step, pluggable user-account
// registration workflow: account creation, email-based activation with
// expiring keys, optional staff approval, and resend-activation flows.
//
// Policy variants:
//   - The default policy creates inactive accounts and emails an
//     activation key; the account turns active only once the key is
//     consumed within the activation window.
//   - The simple policy creates active accounts and signs the user in
//     during the same request.
//   - The admin-approval policies hold accounts behind a staff decision,
//     optionally combined with the emailed activation step.
//
// Activation keys:
//   - Keys are derived with an HMAC over the username and a process-wide
//     secret. Nothing random is stored, and resending re-derives the same
//     key. Rotating the secret therefore invalidates every outstanding
//     unconsumed key at once; that is a known limitation of the scheme,
//     not something the package tries to paper over.
//   - The activation window runs from the user's join date. Resending a
//     key does not extend it.
//   - Expired, never-activated accounts are reclaimed on the failed
//     activation attempt: the user and profile rows are deleted so the
//     username frees up for a fresh signup.
//
// Event sinks:
//   - EventSink receives user_registered, user_activated, user_approved
//     and related lifecycle signals. Sinks run best-effort (errors are
//     logged) so you can forward to a queue without blocking requests.
//
// Persistence:
//   - Repositories are Bun backed. Table DDL ships embedded under
//     data/sql/migrations; applying it is left to the host application's
//     migration tooling.
package registration
