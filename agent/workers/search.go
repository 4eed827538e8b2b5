package workers

import (
	"context"

	contractx "github.com/hirelane/interview-agent/agent/contract"
	serperx "github.com/hirelane/interview-agent/pkg/serper"
)

// serperSearchProvider adapts the Serper.dev client to the research worker's
// search collaborator interface.
type serperSearchProvider struct {
	client *serperx.Client
}

// NewSerperSearchProvider wraps a Serper client as a SearchProvider.
func NewSerperSearchProvider(client *serperx.Client) contractx.SearchProvider {
	return &serperSearchProvider{client: client}
}

func (p *serperSearchProvider) SearchProfiles(ctx context.Context, query string) ([]contractx.ProfileHit, error) {
	hits, err := p.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]contractx.ProfileHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, contractx.ProfileHit{
			Source:  h.Source(),
			URL:     h.Link,
			Snippet: h.Snippet,
		})
	}
	return out, nil
}
