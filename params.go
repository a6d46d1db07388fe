package libcable

import (
	"context"
	"net/http"
	"net/url"
)

type (
	// OpenConnectionParams is everything a Transport needs for one handshake.
	OpenConnectionParams struct {
		URL    url.URL
		Header http.Header
	}

	// OpenConnectionParamsGetter resolves the handshake params right before each open, which lets callers refresh
	// credentials between reconnections. base holds the params derived from the consumer options.
	OpenConnectionParamsGetter func(ctx context.Context, base OpenConnectionParams) (OpenConnectionParams, error)

	// OpenConnectionParamsRepo builds handshake params from the configured url, query and headers.
	OpenConnectionParamsRepo struct {
		logger Logger
		base   url.URL
		query  url.Values
		header http.Header
		getter OpenConnectionParamsGetter
	}
)

// Get returns fresh params for a new handshake. The returned values are copies, transports may keep them.
func (r OpenConnectionParamsRepo) Get(ctx context.Context) (params OpenConnectionParams, err error) {
	u := r.base
	if len(r.query) > 0 {
		q := u.Query()
		for key, values := range r.query {
			q.Del(key)
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	params = OpenConnectionParams{URL: u, Header: r.header.Clone()}
	if params.Header == nil {
		params.Header = make(http.Header)
	}

	if r.getter == nil {
		return params, nil
	}

	params, err = r.getter(ctx, params)
	if err != nil {
		r.logger.Errorf("cannot fetch open connection params: %s", err)
	}
	return
}

func NewOpenConnectionParamsRepo(
	logger Logger,
	base url.URL,
	query url.Values,
	header http.Header,
	getter OpenConnectionParamsGetter,
) OpenConnectionParamsRepo {
	return OpenConnectionParamsRepo{
		logger: logger,
		base:   base,
		query:  query,
		header: header,
		getter: getter,
	}
}
