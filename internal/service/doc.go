// Package service contains the batch use cases of the application and the
// error vocabulary they share.
//
// The subpackages implement the two jobs:
//
//   - recurring: materializes the next occurrence of every recurring
//     template (processRecurringTasks).
//   - reminder: writes one notification per task whose reminder time
//     entered the lookahead window (scanAndNotify).
//
// Both jobs run as the privileged cross-user principal, are idempotent and
// keep no state between runs. A failure that concerns one task becomes a
// TaskError in the run summary; only a failure of the initial scan aborts a
// run, wrapped in ErrFatalQuery.
//
// Services depend on the store interfaces and never on a concrete backend.
package service
