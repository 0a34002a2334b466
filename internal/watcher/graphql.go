package watcher

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	graphql "github.com/hasura/go-graphql-client"
	"github.com/pkg/errors"
)

// endpoint is a plain GraphQL-over-HTTP target.
type endpoint struct {
	URL  string
	HTTP *http.Client
}

func newEndpoint(url string) endpoint {
	return endpoint{URL: url, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

// exec runs query and decodes the data object into out. A non-empty token
// is sent as a bearer credential.
func (e endpoint) exec(ctx context.Context, token, query string, vars map[string]interface{}, out interface{}) error {
	if e.URL == "" {
		return errors.New("graphql endpoint not set")
	}
	httpc := e.HTTP
	if httpc == nil {
		httpc = http.DefaultClient
	}
	client := graphql.NewClient(e.URL, httpc)
	if token != "" {
		client = client.WithRequestModifier(func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		})
	}

	raw, err := client.ExecRaw(ctx, query, vars)
	if err != nil {
		return errors.Wrap(err, "graphql request")
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, out), "decode graphql data")
}
