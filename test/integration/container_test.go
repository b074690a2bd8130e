package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/labdesk/labdesk/internal/platform/db"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "labdesk"
	pgPassword = "labdesk"
	pgDatabase = "labdesktest"
)

// testDatabase returns LABDESK_TEST_DATABASE_URL when it is set. Otherwise it
// runs a disposable postgres container on a port docker picks and returns its
// URL together with a function that removes the container.
func testDatabase(ctx context.Context) (string, func(), error) {
	if url := os.Getenv("LABDESK_TEST_DATABASE_URL"); url != "" {
		return url, func() {}, nil
	}
	if _, err := exec.LookPath("docker"); err != nil {
		return "", nil, errors.New("LABDESK_TEST_DATABASE_URL not set and docker not found")
	}

	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"--label", "labdesk.integration=1",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER="+pgUser,
		"-e", "POSTGRES_PASSWORD="+pgPassword,
		"-e", "POSTGRES_DB="+pgDatabase,
		pgImage,
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run: %w: %s", err, out)
	}
	id := strings.TrimSpace(string(out))
	stop := func() { _ = exec.Command("docker", "stop", id).Run() }

	hostPort, err := publishedPort(ctx, id)
	if err != nil {
		stop()
		return "", nil, err
	}
	url := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgUser, pgPassword, hostPort, pgDatabase)
	if err := awaitReady(ctx, url, 30*time.Second); err != nil {
		stop()
		return "", nil, err
	}
	return url, stop, nil
}

// publishedPort asks docker which host address it bound to the container's
// 5432, e.g. "127.0.0.1:49154".
func publishedPort(ctx context.Context, id string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", "port", id, "5432/tcp").Output()
	if err != nil {
		return "", fmt.Errorf("docker port: %w", err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if line == "" {
		return "", errors.New("docker port: no binding for 5432/tcp")
	}
	return line, nil
}

// awaitReady retries db.NewPool, which pings, until postgres answers.
func awaitReady(ctx context.Context, url string, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	var last error
	for {
		pool, err := db.NewPool(ctx, url, 1, 0)
		if err == nil {
			pool.Close()
			return nil
		}
		last = err
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %v: %w", limit, last)
		case <-time.After(500 * time.Millisecond):
		}
	}
}
