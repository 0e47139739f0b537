package couchbase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"

	"stealthcompany.com/symptomcheck/internal/store"
)

// txOps performs document operations inside one transaction attempt. Nothing it
// writes is visible to other readers until the attempt commits.
type txOps struct {
	cm  *ConnectionManager
	tac *gocb.TransactionAttemptContext
}

func (o txOps) get(ctx context.Context, collection, key string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := o.tac.Get(o.cm.Collection(collection), key)
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return res.Content(out)
}

func (o txOps) exists(ctx context.Context, collection, key string) (bool, error) {
	return rawExists(ctx, o, collection, key)
}

func (o txOps) insertIfAbsent(ctx context.Context, collection, key string, doc interface{}) error {
	ok, err := o.exists(ctx, collection, key)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := o.tac.Insert(o.cm.Collection(collection), key, doc); err != nil {
		return fmt.Errorf("transactional insert %s/%s: %w", collection, key, err)
	}
	return nil
}

func (o txOps) setField(ctx context.Context, collection, key, path string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := o.tac.Get(o.cm.Collection(collection), key)
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var doc map[string]interface{}
	if err := res.Content(&doc); err != nil {
		return err
	}
	doc[path] = value

	if _, err := o.tac.Replace(res, doc); err != nil {
		return fmt.Errorf("transactional replace %s/%s: %w", collection, key, err)
	}
	return nil
}

func (o txOps) query(ctx context.Context, statement string, params []interface{}, onRow func(decode func(interface{}) error) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := o.tac.Query(statement, &gocb.TransactionQueryOptions{
		PositionalParameters: params,
	})
	if err != nil {
		return err
	}

	for res.Next() {
		if err := onRow(res.Row); err != nil {
			return err
		}
	}
	if _, err := res.MetaData(); err != nil {
		return fmt.Errorf("transactional query: %w", err)
	}
	return nil
}

// transactionOptions bounds a transaction by the deadline of ctx, if any.
func transactionOptions(ctx context.Context) *gocb.TransactionOptions {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	timeout := time.Until(deadline)
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return &gocb.TransactionOptions{Timeout: timeout}
}

var _ docOps = txOps{}
