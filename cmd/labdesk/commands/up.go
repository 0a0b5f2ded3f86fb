package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyluth/labdesk/internal/config"
	dockerpkg "github.com/dyluth/labdesk/internal/docker"
	"github.com/dyluth/labdesk/internal/printer"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the workspace Redis",
	Long: `Start a Redis container for this workspace on the port set in
services.redis.port, labelled so 'labdesk down' can find it again.

Not needed when store.backend is sqlite or when LABDESK_REDIS_URL points at
an existing server.`,
	RunE: runUp,
}

func init() {
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return printer.Error(
			fmt.Sprintf("%s not found or invalid", configPath),
			fmt.Sprintf("Error details: %v", err),
			[]string{"Initialize a workspace first:\n  labdesk init"},
		)
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	port := cfg.Services.Redis.Port
	if !dockerpkg.PortAvailable(port) {
		return printer.Error(
			fmt.Sprintf("port %d is in use", port),
			"Another process is already listening on the configured Redis port.",
			[]string{
				"Stop it, or change services.redis.port in labdesk.yml",
				fmt.Sprintf("If it is a Redis you want to use, set %s=redis://localhost:%d instead", config.EnvRedisURL, port),
			},
		)
	}

	printer.Step("Starting Redis (%s) for workspace '%s'...\n", cfg.Services.Redis.Image, cfg.Workspace)
	_, err = dockerpkg.StartRedis(ctx, cli, dockerpkg.RedisSpec{
		Workspace: cfg.Workspace,
		Image:     cfg.Services.Redis.Image,
		Port:      port,
		RunID:     dockerpkg.GenerateRunID(),
	})
	if errors.Is(err, dockerpkg.ErrAlreadyRunning) {
		return printer.Error(
			fmt.Sprintf("workspace '%s' is already up", cfg.Workspace),
			fmt.Sprintf("Container %s exists.", dockerpkg.RedisContainerName(cfg.Workspace)),
			[]string{"Stop it first:\n  labdesk down"},
		)
	}
	if err != nil {
		return err
	}

	url := dockerpkg.RedisURL(port)
	if err := waitForRedis(ctx, url, 10*time.Second); err != nil {
		printer.Warning("Redis started but is not answering yet: %v\n", err)
	}

	printer.Success("Started %s\n", dockerpkg.RedisContainerName(cfg.Workspace))
	printer.Info("\nRedis URL: %s\n", url)
	if cfg.Store.RedisURL != url {
		printer.Info("Set %s=%s in .env if it differs from store.redis_url\n", config.EnvRedisURL, url)
	}
	return nil
}

// waitForRedis pings url until it answers or timeout elapses.
func waitForRedis(ctx context.Context, url string, timeout time.Duration) error {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	deadline := time.Now().Add(timeout)
	for {
		err = rdb.Ping(ctx).Err()
		if err == nil || time.Now().After(deadline) {
			return err
		}
		time.Sleep(200 * time.Millisecond)
	}
}
