package integrations

import (
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/config"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/masking"
)

// Clients bundles every provider adapter. Constructed once at startup and
// handed to whoever needs an integration; the adapters inside are safe for
// concurrent use.
type Clients struct {
	POP      *POPClient
	Keywords *KeywordClient
	NLP      *NLPClient
	SERP     *SERPClient
	Crawl    *CrawlClient
	LLM      *LLMClient

	Masker *masking.Masker

	bases map[string]*Client
}

// ProviderStatus is one provider's view in the health report: whether a
// credential is present and where its circuit breaker stands.
type ProviderStatus struct {
	Configured bool   `json:"configured"`
	Circuit    string `json:"circuit"`
}

// NewClients builds all adapters from config. The masker is seeded with
// every configured key so no provider's credential can leak through another
// provider's logs.
func NewClients(settings *config.Settings) *Clients {
	var secrets []string
	for _, p := range settings.Providers {
		if p.APIKey != "" {
			secrets = append(secrets, p.APIKey)
		}
	}
	masker := masking.NewMasker(secrets...)

	bases := make(map[string]*Client, len(settings.Providers))
	base := func(name string) *Client {
		c := NewClient(settings.Provider(name), masker)
		bases[name] = c
		return c
	}

	return &Clients{
		POP:      NewPOPClient(base(config.ProviderPOP), settings.Pipeline),
		Keywords: NewKeywordClient(base(config.ProviderKeywords), settings.Pipeline.KeywordBatchConcurrency),
		NLP:      NewNLPClient(base(config.ProviderNLP)),
		SERP:     NewSERPClient(base(config.ProviderSERP)),
		Crawl:    NewCrawlClient(base(config.ProviderCrawl)),
		LLM:      NewLLMClient(base(config.ProviderLLM)),
		Masker:   masker,
		bases:    bases,
	}
}

// Status reports every provider for the health endpoint. Callers surface
// this for operators only; a tripped circuit on a third-party API must never
// make the service itself report unhealthy.
func (c *Clients) Status() map[string]ProviderStatus {
	status := make(map[string]ProviderStatus, len(c.bases))
	for name, client := range c.bases {
		status[name] = ProviderStatus{
			Configured: client.Available(),
			Circuit:    client.BreakerState(),
		}
	}
	return status
}

// Close releases every adapter's connection pool.
func (c *Clients) Close() {
	c.POP.Close()
	c.Keywords.Close()
	c.NLP.Close()
	c.SERP.Close()
	c.Crawl.Close()
	c.LLM.Close()
}
