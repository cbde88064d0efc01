package fetcher

import (
	"context"
	"fmt"

	"github.com/cuongbtq/fetch-archiver/internal/domain"
)

// Fetcher retrieves one account's content. Each operation writes its files
// under outDir/<account name> and reports only success or failure.
type Fetcher interface {
	FetchImages(ctx context.Context, outDir string) error
	FetchJournal(ctx context.Context, outDir string) error
	FetchCollection(ctx context.Context, outDir string) error
	FetchProfile(ctx context.Context, outDir string) error
	FetchAll(ctx context.Context, outDir string) error
}

// Factory builds a Fetcher bound to an account name
type Factory func(accountName string) Fetcher

// Operation is a single Fetcher call selected by job type
type Operation func(f Fetcher, ctx context.Context, outDir string) error

// operations maps every job type to its Fetcher method
var operations = map[domain.JobType]Operation{
	domain.JobTypeImages:     Fetcher.FetchImages,
	domain.JobTypeJournal:    Fetcher.FetchJournal,
	domain.JobTypeCollection: Fetcher.FetchCollection,
	domain.JobTypeProfile:    Fetcher.FetchProfile,
	domain.JobTypeAll:        Fetcher.FetchAll,
}

// Lookup returns the operation for a job type
func Lookup(jobType domain.JobType) (Operation, error) {
	op, ok := operations[jobType]
	if !ok {
		return nil, fmt.Errorf("no fetch operation for job type %q", jobType)
	}
	return op, nil
}

// Dispatch runs the operation selected by jobType
func Dispatch(ctx context.Context, f Fetcher, jobType domain.JobType, outDir string) error {
	op, err := Lookup(jobType)
	if err != nil {
		return err
	}
	return op(f, ctx, outDir)
}
