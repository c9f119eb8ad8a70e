//go:build integration

package containers

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RedisContainer wraps a Redis server.
type RedisContainer struct {
	container testcontainers.Container
	addr      string
}

// NewRedisContainer starts Redis and returns once it accepts connections.
func NewRedisContainer(ctx context.Context, imageTag string) (*RedisContainer, error) {
	if imageTag == "" {
		imageTag = "7-alpine"
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:" + imageTag,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	mappedPort, err := container.MappedPort(ctx, "6379")
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}
	if err := WaitForTCP(ctx, host, mappedPort.Int(), 10*time.Second); err != nil {
		_ = container.Terminate(context.Background())
		return nil, err
	}

	return &RedisContainer{
		container: container,
		addr:      net.JoinHostPort(host, strconv.Itoa(mappedPort.Int())),
	}, nil
}

// Addr returns host:port for go-redis.
func (c *RedisContainer) Addr() string {
	return c.addr
}

// Terminate removes the container.
func (c *RedisContainer) Terminate(ctx context.Context) error {
	if err := c.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate Redis container: %w", err)
	}
	return nil
}

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}
