package viewer

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// FileLike is the file object returned by the host file-fetch helper.
type FileLike interface {
	Bytes() ([]byte, error)
}

// HostFileFetcher is the host platform's file-fetch helper capability.
type HostFileFetcher interface {
	FetchFile(ctx context.Context, url, filename string) (FileLike, error)
}

// FetchStrategy is one tier of the fetch fallback chain.
type FetchStrategy struct {
	Name  string
	Fetch func(ctx context.Context, sourceRef, basename string) ([]byte, error)
}

// Fetcher retrieves raw file bytes by trying an ordered list of strategies
// until one succeeds: a direct network fetch first, then the host helper.
// No retries within a tier; when every tier fails the last error is returned.
type Fetcher struct {
	strategies []FetchStrategy
	log        zerolog.Logger
}

// NewFetcher builds the standard two-tier fetcher.
func NewFetcher(client *http.Client, helper HostFileFetcher, log zerolog.Logger) *Fetcher {
	strategies := []FetchStrategy{directStrategy(client)}
	if helper != nil {
		strategies = append(strategies, helperStrategy(helper))
	}
	return NewFetcherWithStrategies(strategies, log)
}

// NewFetcherWithStrategies builds a fetcher from an explicit strategy list.
func NewFetcherWithStrategies(strategies []FetchStrategy, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		strategies: strategies,
		log:        log.With().Str("component", "fetcher").Logger(),
	}
}

// Fetch tries each strategy in order and returns the first success.
func (f *Fetcher) Fetch(ctx context.Context, sourceRef, basename string) ([]byte, error) {
	var lastErr error
	for _, strategy := range f.strategies {
		content, err := strategy.Fetch(ctx, sourceRef, basename)
		if err == nil {
			f.log.Debug().
				Str("strategy", strategy.Name).
				Str("basename", basename).
				Int("bytes", len(content)).
				Msg("Fetch succeeded")
			return content, nil
		}

		f.log.Debug().
			Err(err).
			Str("strategy", strategy.Name).
			Str("url", sourceRef).
			Str("basename", basename).
			Msg("Fetch tier failed")
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no fetch strategies configured")
	}
	return nil, lastErr
}

// directStrategy fetches sourceRef over plain HTTP.
func directStrategy(client *http.Client) FetchStrategy {
	return FetchStrategy{
		Name: "direct",
		Fetch: func(ctx context.Context, sourceRef, basename string) ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceRef, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to build request for %s: %w", sourceRef, err)
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("direct fetch of %s failed: %w", sourceRef, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return nil, fmt.Errorf("direct fetch of %s returned status %d", sourceRef, resp.StatusCode)
			}

			content, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read body of %s: %w", sourceRef, err)
			}
			return content, nil
		},
	}
}

// helperStrategy goes through the host platform's file-fetch helper.
func helperStrategy(helper HostFileFetcher) FetchStrategy {
	return FetchStrategy{
		Name: "host_helper",
		Fetch: func(ctx context.Context, sourceRef, basename string) ([]byte, error) {
			file, err := helper.FetchFile(ctx, sourceRef, basename)
			if err != nil {
				return nil, fmt.Errorf("host helper fetch of %s failed: %w", basename, err)
			}

			content, err := file.Bytes()
			if err != nil {
				return nil, fmt.Errorf("failed to read host helper file %s: %w", basename, err)
			}
			return content, nil
		},
	}
}
