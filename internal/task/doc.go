// Package task runs work items on a bounded pool of goroutines.
//
// The batch jobs turn every template or reminder candidate into a Task and
// hand the slice to RunBatch, which honors the job deadline and reports
// how many items never started. Long-lived consumers, such as asynchronous
// event delivery, pair a TaskQueue with a WorkerPool started for the
// lifetime of the process.
package task
