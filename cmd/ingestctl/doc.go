// Command ingestctl is the operator tool for the media ingestion service.
//
// It reads the same configuration as the service (ingest.yaml and INGEST_*
// variables) and works directly against the registry and queue database, so
// it can be used while the service is down.
//
// Usage:
//
//	ingestctl <command> [flags] [args]
//
// Commands:
//
//	dead-letters [-limit N]
//	        List dead-lettered jobs, newest first, with their error class
//	        and reason.
//
//	retry [-y] <job-id>
//	        Move a dead-lettered job back onto the queue with a fresh
//	        attempt budget. The item stays FAILED until a worker claims
//	        the job again.
//
//	purge [-y] <age>
//	        Delete dead letters that died more than age ago. Age is a Go
//	        duration ("72h") or a number of days ("30d").
//
//	stats   Show queue depth and the number of items per status.
//
//	item <media-id>
//	        Show one item with its probe results and renditions.
//
// retry and purge ask for confirmation when stdin is a terminal; otherwise
// -y is required.
package main
