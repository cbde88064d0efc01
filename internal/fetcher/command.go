package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/cuongbtq/fetch-archiver/internal/domain"
)

const waitDelay = 2 * time.Second

// AccountPlaceholder is replaced by the account name in command arguments
const AccountPlaceholder = "{account}"

// DefaultArgs are the scraper CLI flags for each job type
var DefaultArgs = map[domain.JobType][]string{
	domain.JobTypeImages:     {AccountPlaceholder, "--getImages"},
	domain.JobTypeJournal:    {AccountPlaceholder, "--getJournal"},
	domain.JobTypeCollection: {AccountPlaceholder, "--getCollection"},
	domain.JobTypeProfile:    {AccountPlaceholder, "--getProfile"},
	domain.JobTypeAll:        {AccountPlaceholder, "--all"},
}

// CommandConfig configures the external scraper binary
type CommandConfig struct {
	Binary string
	Args   map[domain.JobType][]string
	Logger *slog.Logger
}

// Command runs an external scraper binary with the output directory as its working directory
type Command struct {
	binary  string
	args    map[domain.JobType][]string
	account string
	logger  *slog.Logger
}

// NewCommandFactory returns a Factory producing Command fetchers. Job types
// missing from cfg.Args fall back to DefaultArgs.
func NewCommandFactory(cfg *CommandConfig) Factory {
	args := make(map[domain.JobType][]string, len(DefaultArgs))
	for t, a := range DefaultArgs {
		args[t] = a
	}
	for t, a := range cfg.Args {
		args[t] = a
	}

	return func(accountName string) Fetcher {
		return &Command{
			binary:  cfg.Binary,
			args:    args,
			account: accountName,
			logger:  cfg.Logger,
		}
	}
}

func (c *Command) FetchImages(ctx context.Context, outDir string) error {
	return c.run(ctx, domain.JobTypeImages, outDir)
}

func (c *Command) FetchJournal(ctx context.Context, outDir string) error {
	return c.run(ctx, domain.JobTypeJournal, outDir)
}

func (c *Command) FetchCollection(ctx context.Context, outDir string) error {
	return c.run(ctx, domain.JobTypeCollection, outDir)
}

func (c *Command) FetchProfile(ctx context.Context, outDir string) error {
	return c.run(ctx, domain.JobTypeProfile, outDir)
}

func (c *Command) FetchAll(ctx context.Context, outDir string) error {
	return c.run(ctx, domain.JobTypeAll, outDir)
}

func (c *Command) run(ctx context.Context, jobType domain.JobType, outDir string) error {
	template, ok := c.args[jobType]
	if !ok {
		return fmt.Errorf("no command arguments configured for job type %q", jobType)
	}

	args := make([]string, len(template))
	for i, a := range template {
		args[i] = strings.ReplaceAll(a, AccountPlaceholder, c.account)
	}

	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Dir = outDir
	// grandchildren may keep the output pipes open after the scraper is killed
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("Running fetch command",
		slog.String("binary", c.binary),
		slog.Any("args", args),
		slog.String("dir", outDir),
	)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("fetch %s for %s canceled: %w", jobType, c.account, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			return fmt.Errorf("fetch %s for %s failed: %w", jobType, c.account, err)
		}
		return fmt.Errorf("fetch %s for %s failed: %s", jobType, c.account, lastLine(msg))
	}

	return nil
}

// lastLine keeps the final line of tool output, where CLIs usually print the cause
func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
