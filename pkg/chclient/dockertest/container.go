// Package dockertest manages a throwaway ClickHouse container for chkit's
// integration tests, adapted from housekeeper's pkg/docker container helper.
package dockertest

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/pkg/errors"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Container manages a ClickHouse Docker container for driving chkit's
// planner/render/runner pipeline against a real server.
type Container struct {
	version   string
	container *clickhouse.ClickHouseContainer
}

// New returns a Container that will run the given ClickHouse version
// ("latest" if empty).
func New(version string) *Container {
	if version == "" {
		version = "latest"
	}
	return &Container{version: version}
}

// Start launches the container and blocks until it's ready to accept
// connections.
func (c *Container) Start(ctx context.Context) error {
	if c.container != nil {
		return errors.New("container is already running")
	}

	ctr, err := clickhouse.Run(ctx,
		fmt.Sprintf("clickhouse/clickhouse-server:%s-alpine", c.version),
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(""),
		testcontainers.WithEnv(map[string]string{"CLICKHOUSE_DEFAULT_ACCESS_MANAGEMENT": "1"}),
		testcontainers.WithWaitStrategyAndDeadline(
			5*time.Minute,
			wait.NewHTTPStrategy("/").WithPort(nat.Port("8123/tcp")).WithStatusCodeMatcher(func(status int) bool {
				return status == 200
			}),
		),
	)
	if err != nil {
		return errors.Wrap(err, "starting clickhouse container")
	}

	c.container = ctr
	return nil
}

// Stop terminates the container.
func (c *Container) Stop(ctx context.Context) error {
	if c.container == nil {
		return nil
	}
	err := c.container.Terminate(ctx)
	c.container = nil
	return errors.Wrap(err, "stopping clickhouse container")
}

// NativeAddr returns the host:port for the native protocol port (9000),
// suitable for chclient.Options.Addr.
func (c *Container) NativeAddr(ctx context.Context) (string, error) {
	if c.container == nil {
		return "", errors.New("container is not running")
	}
	host, err := c.container.Host(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting container host")
	}
	port, err := c.container.MappedPort(ctx, "9000/tcp")
	if err != nil {
		return "", errors.Wrap(err, "getting container native port")
	}
	return fmt.Sprintf("%s:%s", host, port.Port()), nil
}
