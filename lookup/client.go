// Package lookup resolves printed card names to canonical English names
// through the Scryfall named-card endpoint.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/mythic-to-moxfield/config"
	"github.com/gocolly/colly/v2"
)

const namedPath = "/cards/named"

const (
	ctxName      = "name"
	ctxDecodeErr = "decode_error"
	ctxStatus    = "status"
)

type namedCard struct {
	Name string `json:"name"`
}

// Client issues one blocking lookup per call. Nothing is cached and nothing
// is retried: a repeated name is queried again.
type Client struct {
	endpoint  string
	collector *colly.Collector
	Metrics   *Metrics
}

// NewClient builds a lookup client configured from cfg.
func NewClient(cfg *config.Config) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + namedPath
	parsed.RawQuery = ""
	c := &Client{
		endpoint:  parsed.String(),
		collector: collector,
		Metrics:   NewMetrics(),
	}
	c.configureHandlers()
	return c, nil
}

// WithTransport replaces the HTTP transport used for lookups.
func (c *Client) WithTransport(transport http.RoundTripper) {
	c.collector.WithTransport(transport)
}

func (c *Client) configureHandlers() {
	c.collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
	})

	c.collector.OnResponse(func(r *colly.Response) {
		var card namedCard
		if err := json.Unmarshal(r.Body, &card); err != nil {
			r.Ctx.Put(ctxDecodeErr, err)
			return
		}
		r.Ctx.Put(ctxName, card.Name)
	})

	c.collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Ctx != nil {
			r.Ctx.Put(ctxStatus, r.StatusCode)
		}
	})
}

// Resolve returns the English name of the card printed as name. Every
// failure to resolve is returned as *MissError; only a cancelled context
// yields a different error.
func (c *Client) Resolve(ctx context.Context, name string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	reqCtx := colly.NewContext()
	start := time.Now()
	err := c.collector.Request(http.MethodGet, c.namedURL(name), nil, reqCtx, nil)
	c.Metrics.ObserveDuration(time.Since(start))

	if err != nil {
		status, _ := reqCtx.GetAny(ctxStatus).(int)
		return "", c.miss(name, classifyError(err, status))
	}
	if decodeErr, ok := reqCtx.GetAny(ctxDecodeErr).(error); ok {
		return "", c.miss(name, ErrDecode{Err: decodeErr})
	}
	english := reqCtx.Get(ctxName)
	if english == "" {
		return "", c.miss(name, ErrMissingName)
	}

	c.Metrics.IncRequest("resolved")
	c.Metrics.IncResolved()
	slog.Debug("card resolved",
		slog.String("printed_name", name),
		slog.String("name", english),
	)
	return english, nil
}

func (c *Client) miss(name string, cause error) error {
	if cause == nil {
		cause = errors.New("lookup failed")
	}
	miss := &MissError{Name: name, Err: cause}
	c.Metrics.IncRequest("unresolved")
	c.Metrics.IncError(miss.Reason())
	return miss
}

// namedURL builds an exact, case-sensitive printed-name query.
func (c *Client) namedURL(name string) string {
	params := url.Values{}
	params.Set("exact", name)
	params.Set("version", "printed")
	return c.endpoint + "?" + params.Encode()
}
