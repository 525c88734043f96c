// Package main hosts the job crawler service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, crawl trigger, cleanup, recent-job, and digest
//     endpoints. POST /v1/crawl is fire-and-forget: the run continues in the background and overlapping requests
//     get 409.
//   - Crawl runs: internal/pipeline.Runner iterates the active sources one at a time under a run lock. Each source
//     gets a vendor scraper (Greenhouse offset pagination or Lever cursor pagination) built on a shared polite
//     HTTP client with a per-request delay.
//   - Per-source pipeline: discovered postings pass through the title prefilter, then candidates get their detail
//     pages fetched under a bounded semaphore, optionally archived to the blob store, and classified by Gemini
//     behind a requests-per-minute rate limiter. A failure on one posting never aborts the rest.
//   - Persistence & fanout: postings are upserted into Postgres keyed by (source, external ID) with first-write-wins
//     descriptions and terminal analysis statuses. In-memory providers exist for local runs. A run summary is
//     published to Pub/Sub when a topic is configured.
//   - Configuration & plumbing: Viper populates config from env/files (JOBCRAWLER_ prefix); zap provides structured
//     logging; Prometheus metrics are exported via /metrics; robfig/cron drives scheduled crawls, retention
//     cleanup, and the daily digest.
//
// Run locally: go run ./cmd/jobcrawler -config config.yaml (or rely solely on env overrides).
package main
