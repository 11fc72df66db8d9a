package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"spool/internal/logging"
	"spool/internal/services"
)

// Client is the job-store facade used by producers and worker loops.
type Client struct {
	mu        sync.Mutex
	store     Store
	dial      Dialer
	queueName string
	logger    *slog.Logger
	now       func() time.Time
}

// NewClient dials the store and verifies it answers. A store that cannot be
// reached here is a startup failure.
func NewClient(ctx context.Context, dial Dialer, queueName string, logger *slog.Logger) (*Client, error) {
	if dial == nil {
		return nil, services.Wrap(services.ErrConfiguration, "store", "dial", "no dialer configured", nil)
	}
	if queueName == "" {
		queueName = DefaultQueueName
	}
	store, err := dial(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "store", "dial", "open job store", err)
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, services.Wrap(services.ErrStore, "store", "ping", "job store unreachable", err)
	}
	return &Client{
		store:     store,
		dial:      dial,
		queueName: queueName,
		logger:    logging.NewComponentLogger(logger, "queue"),
		now:       time.Now,
	}, nil
}

// QueueName returns the dispatch list this client pushes to and pops from.
func (c *Client) QueueName() string { return c.queueName }

// Dialer returns the dialer used by this client so callers can open
// independent connections to the same store.
func (c *Client) Dialer() Dialer { return c.dial }

func (c *Client) current() Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// reconnect swaps in a freshly dialed store. The previous handle is closed.
func (c *Client) reconnect(ctx context.Context) error {
	fresh, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	old := c.store
	c.store = fresh
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Enqueue assigns an identifier when missing, writes the full record, and
// only then pushes the identifier onto the dispatch queue.
func (c *Client) Enqueue(ctx context.Context, job *Job) (string, error) {
	if job == nil {
		return "", fmt.Errorf("%w: nil job", ErrInvalidJob)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Filename == "" {
		job.Filename = job.ID
	}
	now := c.now().UTC()
	job.Status = StatusQueued
	job.CreatedAt = now
	job.UpdatedAt = now

	store := c.current()
	if err := store.SetFields(ctx, JobKey(job.ID), job.ToFields()); err != nil {
		return "", services.Wrap(services.ErrStore, "store", "enqueue", "write job record", err)
	}
	if _, err := store.SetAdd(ctx, IndexKey, job.ID); err != nil {
		return "", services.Wrap(services.ErrStore, "store", "enqueue", "index job", err)
	}
	if err := store.Push(ctx, c.queueName, job.ID); err != nil {
		return "", services.Wrap(services.ErrStore, "store", "enqueue", "push job id", err)
	}
	return job.ID, nil
}

// Fields returns the raw stored record. An absent record is ErrNotFound. A
// failed read is retried once on a fresh connection.
func (c *Client) Fields(ctx context.Context, id string) (map[string]string, error) {
	key := JobKey(id)
	fields, err := c.current().GetAllFields(ctx, key)
	if err != nil && ctx.Err() == nil {
		c.logger.Debug("job read failed; reconnecting",
			logging.JobID(id),
			logging.Error(err),
		)
		if dialErr := c.reconnect(ctx); dialErr != nil {
			return nil, services.Wrap(services.ErrStore, "store", "get", "reconnect", dialErr)
		}
		fields, err = c.current().GetAllFields(ctx, key)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "store", "get", "read job record", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("job %s: %w", id, services.ErrNotFound)
	}
	return fields, nil
}

// Get returns the typed job record.
func (c *Client) Get(ctx context.Context, id string) (*Job, error) {
	fields, err := c.Fields(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromFields(id, fields), nil
}

// Update merges fields into the job record and stamps updated_at. A failed
// write is retried once on a fresh connection; the second error is returned
// so the caller can log it and move on.
func (c *Client) Update(ctx context.Context, id string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	payload := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload[FieldUpdatedAt] = FormatTime(c.now())

	key := JobKey(id)
	err := c.current().SetFields(ctx, key, payload)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	c.logger.Debug("job write failed; reconnecting",
		logging.JobID(id),
		logging.Error(err),
	)
	if dialErr := c.reconnect(ctx); dialErr != nil {
		return services.Wrap(services.ErrStore, "store", "update", "reconnect", dialErr)
	}
	if err := c.current().SetFields(ctx, key, payload); err != nil {
		return services.Wrap(services.ErrStore, "store", "update", "write job fields", err)
	}
	return nil
}

// Requeue pushes an existing job identifier back onto the dispatch queue,
// retrying once on a fresh connection.
func (c *Client) Requeue(ctx context.Context, id string) error {
	err := c.current().Push(ctx, c.queueName, id)
	if err != nil && ctx.Err() == nil {
		if dialErr := c.reconnect(ctx); dialErr != nil {
			return services.Wrap(services.ErrStore, "store", "requeue", "reconnect", dialErr)
		}
		err = c.current().Push(ctx, c.queueName, id)
	}
	if err != nil {
		return services.Wrap(services.ErrStore, "store", "requeue", "push job id", err)
	}
	return nil
}

// Pop waits up to timeout for the next job identifier. It returns "" when the
// wait elapses without work.
func (c *Client) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	id, err := c.current().BlockingPop(ctx, c.queueName, timeout)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Pending reports how many identifiers are waiting on the dispatch queue.
func (c *Client) Pending(ctx context.Context) (int64, error) {
	return c.current().Len(ctx, c.queueName)
}

// JobIDs returns every identifier recorded in the job index.
func (c *Client) JobIDs(ctx context.Context) ([]string, error) {
	return c.current().SetMembers(ctx, IndexKey)
}

// MarkSeen adds member to the seen-set and reports whether it was new.
func (c *Client) MarkSeen(ctx context.Context, setKey, member string) (bool, error) {
	return c.current().SetAdd(ctx, setKey, member)
}

// Seen reports whether member is already in the seen-set.
func (c *Client) Seen(ctx context.Context, setKey, member string) (bool, error) {
	return c.current().SetContains(ctx, setKey, member)
}

// Ping checks store reachability.
func (c *Client) Ping(ctx context.Context) error {
	return c.current().Ping(ctx)
}

// Close releases the underlying store connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
