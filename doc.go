// Package main provides the entry point for the media ingestion service.
//
// The service accepts photo and video uploads for albums, stores the raw
// bytes, and derives thumbnails, previews, posters and transcodes in a pool
// of background workers. Clients poll or stream the processing status of
// every item until it is READY or FAILED.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Configuration Loading: .env, ingest.yaml and INGEST_* variables
//  2. Memory Configuration: Sets GOMEMLIMIT from environment or cgroup limits
//  3. Database Initialization: SQLite (WAL) or PostgreSQL, migrated by goose
//  4. Blob Store: local directory or an S3-compatible bucket
//  5. Status Publisher: in-process broker plus optional Redis and Kafka sinks
//  6. Workers (roles "all" and "worker"):
//     - Renderer: libvips when available, pure Go decoders otherwise
//     - Transcoder: ffmpeg posters and H.264 transcodes (if enabled)
//     - Memory Monitor: pauses claiming under heap pressure
//     - Worker Pool: claims jobs with a lease and heartbeats while working
//     - Scheduler: queue gauges, dead-letter purge, orphan reconciliation
//  7. Upload Events (roles "all" and "api"): Kafka consumer for blobs that
//     were stored by another system
//  8. HTTP Server Setup: routes, middleware, then listen
//  9. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components cleanly
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - POST /api/albums/{albumId}/media: upload one file (202 + PENDING view)
//     - GET /api/albums/{albumId}/media: list an album
//     - GET /api/media/{id}: current status and rendition URLs
//     - GET /api/media/{id}/events: server-sent status events
//     - GET /api/blobs/{key}: renditions from the local blob store
//     - /api/admin/...: dead letters and queue depth
//     - /healthz, /livez, /readyz, /version
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//
// A worker-only process serves only the health and version routes on the
// main port.
//
// # Environment Variables
//
// See package startup for the full list. The most common ones:
//
//   - INGEST_ROLE: all, api or worker
//   - INGEST_DATA_DIR: SQLite file and local blobs
//   - INGEST_DATABASE_DRIVER / INGEST_DATABASE_DSN
//   - INGEST_BLOB_BACKEND and INGEST_BLOB_S3_*
//   - INGEST_WORKERS_COUNT, INGEST_WORKERS_LEASE
//   - INGEST_VIDEO_ENABLED
//   - INGEST_REDIS_ADDR, INGEST_KAFKA_BROKERS
//   - LOG_LEVEL: debug, info, warn, error
package main
