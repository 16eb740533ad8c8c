// Package auth resolves who the current actor of a condominium management
// application is and keeps that decision consistent across overlapping,
// slow or failing session operations.
//
// Session bootstrap:
//   - SessionObserver merges the session store's "current session" query,
//     bounded by Config.SessionTimeout, with its change notifications into a
//     single stream. The store's own initial notification never drives a
//     second first publication.
//   - SessionManager.Start arms a watchdog (Config.WatchdogTimeout) that
//     forces IsLoading off if the store never answers.
//
// Identity resolution:
//   - IdentityResolver.ToBasicIdentity maps session claims to an Identity
//     with no I/O. Role defaults to resident, approval to false, and the
//     configured superadmin id is always an approved admin.
//   - The approval gate (IsAdmitted) runs before anything is published or
//     enriched. Rejected actors are redirected to Config.PendingApprovalPath.
//   - IdentityResolver.EnrichIdentity adds profile and unit data from an
//     EnrichmentStore, bounded by Config.EnrichTimeout. It never changes the
//     role or the approval flag.
//
// State:
//   - SessionState is published as a whole. Login, LoginWithSecret, Logout
//     and Refresh return a success flag plus a typed error. Enrichment
//     results are applied only while the same subject is still published.
package auth
