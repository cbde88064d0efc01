package fetcher

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/cuongbtq/fetch-archiver/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingFetcher struct {
	called []string
	outDir string
}

func (r *recordingFetcher) record(name, outDir string) error {
	r.called = append(r.called, name)
	r.outDir = outDir
	return nil
}

func (r *recordingFetcher) FetchImages(_ context.Context, outDir string) error {
	return r.record("images", outDir)
}

func (r *recordingFetcher) FetchJournal(_ context.Context, outDir string) error {
	return r.record("journal", outDir)
}

func (r *recordingFetcher) FetchCollection(_ context.Context, outDir string) error {
	return r.record("collection", outDir)
}

func (r *recordingFetcher) FetchProfile(_ context.Context, outDir string) error {
	return r.record("profile", outDir)
}

func (r *recordingFetcher) FetchAll(_ context.Context, outDir string) error {
	return r.record("all", outDir)
}

func TestOperationsCoverEveryJobType(t *testing.T) {
	require.Len(t, operations, len(domain.JobTypes))
	for _, jt := range domain.JobTypes {
		_, err := Lookup(jt)
		assert.NoError(t, err, "job type %s", jt)
	}
}

func TestDispatch(t *testing.T) {
	for _, jt := range domain.JobTypes {
		t.Run(string(jt), func(t *testing.T) {
			f := &recordingFetcher{}
			require.NoError(t, Dispatch(context.Background(), f, jt, "/out"))
			assert.Equal(t, []string{string(jt)}, f.called)
			assert.Equal(t, "/out", f.outDir)
		})
	}
}

func TestDispatch_UnknownType(t *testing.T) {
	f := &recordingFetcher{}
	err := Dispatch(context.Background(), f, domain.JobType("videos"), "/out")
	assert.Error(t, err)
	assert.Empty(t, f.called)
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("command fetcher tests use sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newShellFactory(script string) Factory {
	return NewCommandFactory(&CommandConfig{
		Binary: "sh",
		Args: map[domain.JobType][]string{
			domain.JobTypeImages: {"-c", script},
		},
		Logger: slog.New(slog.DiscardHandler),
	})
}

func TestCommand_WritesIntoOutputDir(t *testing.T) {
	requireShell(t)

	outDir := t.TempDir()
	f := newShellFactory("mkdir -p {account}/images && printf data > {account}/images/1.jpg")("alice")

	require.NoError(t, f.FetchImages(context.Background(), outDir))

	data, err := os.ReadFile(filepath.Join(outDir, "alice", "images", "1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestCommand_ErrorCarriesStderr(t *testing.T) {
	requireShell(t)

	f := newShellFactory("echo progress; echo 'starting' >&2; echo 'user does not exist' >&2; exit 3")("ghost")
	err := f.FetchImages(context.Background(), t.TempDir())

	require.Error(t, err)
	assert.Equal(t, "fetch images for ghost failed: user does not exist", err.Error())
}

func TestCommand_ContextCanceled(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := newShellFactory("sleep 5")("alice")
	err := f.FetchImages(ctx, t.TempDir())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewCommandFactory_DefaultArgs(t *testing.T) {
	f := NewCommandFactory(&CommandConfig{Binary: "vscoscrape", Logger: slog.New(slog.DiscardHandler)})("alice")
	cmd, ok := f.(*Command)
	require.True(t, ok)

	for _, jt := range domain.JobTypes {
		assert.NotEmpty(t, cmd.args[jt], "job type %s", jt)
	}
	assert.Equal(t, []string{AccountPlaceholder, "--getImages"}, cmd.args[domain.JobTypeImages])
}
