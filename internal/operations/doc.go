// Package operations runs exports in the background.
//
// A JobQueue accepts export requests, persists a Job record in a JobStore and
// hands the work to a fixed pool of workers. Each job moves through
//
//	pending -> running -> completed | failed
//
// and every transition is sent as an "export:status" message to the job
// owner so its WebSocket clients can follow progress without polling. Finished
// artifacts stay downloadable for the configured retention period, after
// which a sweeper removes the job and its bytes.
//
// MemoryJobStore is the only store; it keeps everything in process.
package operations
