// Package notifications delivers completion callbacks for finished jobs.
//
// A callback is a single HTTP POST of the terminal job record, encoded as a
// JSON object of text fields, to the job's callback_url. Delivery is
// fire-and-forget: failures are returned to the caller for logging and never
// change the job's outcome.
package notifications
