// Package chclient wraps the ClickHouse driver connection chkit's runner,
// drift comparer, and database-backed journal use to talk to a live
// cluster (grounded on housekeeper's own pkg/clickhouse.Client).
package chclient

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/pkg/errors"

	"github.com/pseudomuto/chkit/pkg/chkerr"
	"github.com/pseudomuto/chkit/pkg/consts"
)

// Client wraps a driver.Conn with the DDL timeout and error wrapping chkit's
// runner and drift comparer expect.
type Client struct {
	conn    driver.Conn
	timeout time.Duration
}

// Options configures a new Client.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
	// Timeout bounds each individual statement; zero uses
	// consts.DefaultDDLTimeout seconds.
	Timeout time.Duration
}

// New opens and pings a ClickHouse connection. Returns
// chkerr.ErrMissingClickHouseConfig if opts.Addr is empty.
func New(opts Options) (*Client, error) {
	if opts.Addr == "" {
		return nil, chkerr.ErrMissingClickHouseConfig
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = consts.DefaultDDLTimeout * time.Second
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening clickhouse connection")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, "pinging clickhouse")
	}

	return &Client{conn: conn, timeout: timeout}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Exec runs a DDL/DML statement, bounded by the client's configured timeout
// if ctx carries no earlier deadline.
func (c *Client) Exec(ctx context.Context, query string, args ...any) error {
	ctx, cancel := c.boundedContext(ctx)
	defer cancel()
	if err := c.conn.Exec(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "executing statement")
	}
	return nil
}

// rowsAdapter wraps the driver.Rows that Query returns so that Close also
// releases the query's context. cancel releases the query's bounded context once the caller is done
// iterating, on Close.
type rowsAdapter struct {
	driver.Rows
	cancel context.CancelFunc
}

func (r *rowsAdapter) Close() error {
	err := r.Rows.Close()
	r.cancel()
	return err
}

// Query runs a query and returns its rows. The caller must Close the
// returned rows to release the query's bounded context.
func (c *Client) Query(ctx context.Context, query string, args ...any) (*rowsAdapter, error) {
	ctx, cancel := c.boundedContext(ctx)
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "querying")
	}
	return &rowsAdapter{Rows: rows, cancel: cancel}, nil
}

func (c *Client) boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
