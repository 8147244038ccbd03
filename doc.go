// Package auth is the authenticated session core of the Autoresum Go
// client: token storage and refresh, bounded request concurrency,
// retry on transient failures, input validation and sanitization, and
// idle-session termination.
//
// Session lifecycle:
//   - SessionManager owns the credential store and moves the session
//     through anonymous, authenticating, authenticated, and refreshing.
//     Construct exactly one per application root; every API client and
//     the SessionWatcher borrow its transport and request gate.
//   - A generation counter is bumped on sign-out so a token refresh
//     racing a sign-out can never repopulate cleared credentials.
//
// Transport recovery:
//   - Timeouts are retried up to a fixed budget with a fixed delay.
//   - A 401 triggers at most one token refresh per original request,
//     then the call is replayed with the new token. A 403 clears the
//     stored credentials without retrying.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter fed by sign-in,
//     sign-out, refresh, and idle-timeout events. Errors are logged and
//     never block the session flow.
package auth
