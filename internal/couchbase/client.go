package couchbase

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/symptomcheck/internal/store"
)

// Client is the Couchbase-backed store.Store
type Client struct {
	connManager *ConnectionManager
	locker      *DatabaseLocker
	repositories
}

// NewClient creates a new Couchbase client
func NewClient(url, username, password, bucket, scope string) (*Client, error) {
	connManager, err := NewConnectionManager(url, username, password, bucket, scope)
	if err != nil {
		return nil, err
	}

	return &Client{
		connManager: connManager,
		locker:      NewDatabaseLocker(connManager.Collection(SystemCollection)),
		repositories: repositories{
			ops:      kvOps{cm: connManager},
			keyspace: connManager.Keyspace,
		},
	}, nil
}

// WithinTx runs fn inside a Couchbase ACID transaction. The transaction layer retries
// attempts on write-write conflicts, so fn must be safe to run more than once. The
// deadline of ctx bounds the whole transaction.
func (c *Client) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Repositories) error) error {
	_, err := c.connManager.cluster.Transactions().Run(func(tac *gocb.TransactionAttemptContext) error {
		return fn(ctx, repositories{
			ops:      txOps{cm: c.connManager, tac: tac},
			keyspace: c.connManager.Keyspace,
		})
	}, transactionOptions(ctx))
	if err != nil {
		return fmt.Errorf("couchbase transaction: %w", err)
	}
	return nil
}

// Lock takes the ingestion lock
func (c *Client) Lock(ctx context.Context, owner string) error {
	return c.locker.Lock(ctx, owner)
}

// Unlock releases the ingestion lock
func (c *Client) Unlock(ctx context.Context) error {
	return c.locker.Unlock(ctx)
}

// Close closes the Couchbase connection
func (c *Client) Close() error {
	log.Info().Msg("Closing Couchbase connection")
	return c.connManager.Close()
}

// kvOps performs document operations directly against the data and query services.
type kvOps struct {
	cm *ConnectionManager
}

func (o kvOps) get(ctx context.Context, collection, key string, out interface{}) error {
	res, err := o.cm.Collection(collection).Get(key, &gocb.GetOptions{Context: ctx})
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get document %s/%s: %w", collection, key, err)
	}
	if err := res.Content(out); err != nil {
		return fmt.Errorf("failed to parse document %s/%s: %w", collection, key, err)
	}
	return nil
}

func (o kvOps) exists(ctx context.Context, collection, key string) (bool, error) {
	res, err := o.cm.Collection(collection).Exists(key, &gocb.ExistsOptions{Context: ctx})
	if err != nil {
		return false, fmt.Errorf("failed to check document %s/%s: %w", collection, key, err)
	}
	return res.Exists(), nil
}

func (o kvOps) insertIfAbsent(ctx context.Context, collection, key string, doc interface{}) error {
	_, err := o.cm.Collection(collection).Insert(key, doc, &gocb.InsertOptions{Context: ctx})
	if err != nil && !errors.Is(err, gocb.ErrDocumentExists) {
		return fmt.Errorf("failed to insert document %s/%s: %w", collection, key, err)
	}
	return nil
}

func (o kvOps) setField(ctx context.Context, collection, key, path string, value interface{}) error {
	_, err := o.cm.Collection(collection).MutateIn(key, []gocb.MutateInSpec{
		gocb.UpsertSpec(path, value, nil),
	}, &gocb.MutateInOptions{Context: ctx})
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to update document %s/%s: %w", collection, key, err)
	}
	return nil
}

func (o kvOps) query(ctx context.Context, statement string, params []interface{}, onRow func(decode func(interface{}) error) error) error {
	res, err := o.cm.cluster.Query(statement, &gocb.QueryOptions{
		Context:              ctx,
		PositionalParameters: params,
		ScanConsistency:      gocb.QueryScanConsistencyRequestPlus,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		if closeErr := res.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close query result")
		}
	}()

	for res.Next() {
		if err := onRow(res.Row); err != nil {
			return fmt.Errorf("failed to decode row: %w", err)
		}
	}
	return res.Err()
}

var _ store.Store = (*Client)(nil)
var _ store.Locker = (*Client)(nil)
