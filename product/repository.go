package product

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/and4010/apimanager"
	"github.com/and4010/apimanager/internal/logutil"
)

// Repository loads the catalog through an apimanager.Client and answers
// queries against the last successful load. It is safe for concurrent use.
type Repository struct {
	client *apimanager.Client
	api    API
	opts   []apimanager.CallOption
	logger *slog.Logger

	mu    sync.RWMutex
	items []Item
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithAPI replaces the default catalog endpoint.
func WithAPI(api API) RepositoryOption {
	return func(r *Repository) {
		r.api = api
	}
}

// WithCallOptions applies opts to every load.
func WithCallOptions(opts ...apimanager.CallOption) RepositoryOption {
	return func(r *Repository) {
		r.opts = append(r.opts, opts...)
	}
}

// WithLogger sets the repository logger. Nil discards output.
func WithLogger(logger *slog.Logger) RepositoryOption {
	return func(r *Repository) {
		r.logger = logger
	}
}

// NewRepository returns an empty repository loading through client.
func NewRepository(client *apimanager.Client, options ...RepositoryOption) *Repository {
	r := &Repository{client: client}
	for _, option := range options {
		option(r)
	}
	r.logger = logutil.NoopIfNil(r.logger)
	return r
}

// Load fetches the catalog and replaces the repository contents with it. On
// failure the previous contents are kept and the error is a
// *apimanager.CallError describing the outcome. A load superseded by a newer
// load returns an error of type ErrorTypeCanceled.
func (r *Repository) Load(ctx context.Context) ([]Item, error) {
	var (
		items   []Item
		callErr *apimanager.CallError
	)

	state := apimanager.Call(ctx, r.client, r.api, nil, apimanager.CallbackFuncs[Response]{
		OnSuccessful: func(resp *apimanager.Response[Response]) {
			items = make([]Item, 0, len(resp.Data.Data))
			for _, m := range resp.Data.Data {
				items = append(items, m.ToItem())
			}
		},
		OnFail: func(resp *apimanager.Response[Response]) {
			callErr = &apimanager.CallError{
				Type:    apimanager.ErrorTypeApplicationFail,
				Message: "catalog request failed",
				API:     Identity,
			}
			if resp != nil {
				callErr.StatusCode = resp.StatusCode
			}
		},
		OnNetworkError: func(err error) {
			callErr = &apimanager.CallError{
				Type:    apimanager.ErrorTypeNetwork,
				Message: "catalog unreachable",
				Cause:   err,
				API:     Identity,
			}
		},
		OnOtherError: func(msg string) {
			callErr = &apimanager.CallError{
				Type:    apimanager.ErrorTypeOther,
				Message: msg,
				API:     Identity,
			}
		},
	}, r.opts...)

	if state == apimanager.StateCanceled {
		cause := context.Cause(ctx)
		if cause == nil {
			cause = apimanager.ErrSuperseded
		}
		return nil, &apimanager.CallError{
			Type:    apimanager.ErrorTypeCanceled,
			Message: "catalog load canceled",
			Cause:   cause,
			API:     Identity,
		}
	}
	if callErr != nil {
		r.logger.Warn("catalog load failed", "error", callErr)
		return nil, callErr
	}

	r.mu.Lock()
	r.items = items
	r.mu.Unlock()

	r.logger.Debug("catalog loaded", "count", len(items))
	return r.Items(), nil
}

// Items returns a copy of the loaded catalog.
func (r *Repository) Items() []Item {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Item, len(r.items))
	copy(out, r.items)
	return out
}

// Filter returns the items whose mart name contains query, ignoring case. An
// empty query matches every item.
func (r *Repository) Filter(query string) []Item {
	fold := cases.Fold()
	needle := fold.String(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Item
	for _, item := range r.items {
		if strings.Contains(fold.String(item.MartName), needle) {
			out = append(out, item)
		}
	}
	return out
}

// Get returns the item with the given mart id.
func (r *Repository) Get(id int) (Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.items {
		if item.MartID == id {
			return item, true
		}
	}
	return Item{}, false
}

// String summarizes the repository for logging.
func (r *Repository) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("product.Repository{items: %d, url: %s}", len(r.items), r.api.Path())
}
