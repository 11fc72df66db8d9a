// Package api is the submission and status HTTP surface.
//
// # Endpoints
//
// POST /enqueue: validate a single-item request, write the job record and
// push its id onto the dispatch queue.
//
// GET /status/:id: raw job record fields.
//
// POST /check-channel: run the channel watcher synchronously.
//
// GET /health and GET /metrics: store readiness and Prometheus collectors.
//
// # Design Notes
//
// Request booleans accept JSON bools or the strings "true", "false", "1" and
// "0" because producers hand-build their payloads. Listing URLs (playlists,
// channels, handles) are rejected on the single-item path; they belong to
// /check-channel. Status responses return the record as stored, text values
// only, so pollers see exactly what workers wrote.
package api
