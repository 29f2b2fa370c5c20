package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/perpgate/perpgate/infra/breakers"
)

const (
	defaultOKXBaseURL = "https://www.okx.com"
	defaultTimeout    = 8 * time.Second
)

// OKXClient implements Source against the OKX public REST API. Calls are
// rate-limited and routed through a circuit breaker; each request carries
// an 8-second deadline.
type OKXClient struct {
	http    *resty.Client
	breaker *breakers.Breaker
	limiter *rate.Limiter
}

// NewOKX builds an OKX client. baseURL is overridable for tests; empty means
// the public endpoint.
func NewOKX(baseURL string) *OKXClient {
	if baseURL == "" {
		baseURL = defaultOKXBaseURL
	}
	return &OKXClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json"),
		breaker: breakers.New("okx"),
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// okxEnvelope is the common {code, msg, data} wrapper on OKX responses.
type okxEnvelope struct {
	Code string            `json:"code"`
	Msg  string            `json:"msg"`
	Data []json.RawMessage `json:"data"`
}

func (c *OKXClient) get(ctx context.Context, path string, params map[string]string) ([]json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(path)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("okx %s: status %d", path, resp.StatusCode())
		}
		var env okxEnvelope
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			return nil, fmt.Errorf("okx %s: malformed response: %w", path, err)
		}
		if env.Code != "0" {
			return nil, fmt.Errorf("okx %s: code %s: %s", path, env.Code, env.Msg)
		}
		return env.Data, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]json.RawMessage), nil
}

// parseFloat parses an OKX string numeric, returning nil (not zero) when the
// field is empty or malformed.
func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Quote fetches price, funding rate and open interest for one instrument.
// Price is mandatory; funding and OI degrade to nil on per-field failure so
// one flaky endpoint does not lose the whole observation.
func (c *OKXClient) Quote(ctx context.Context, instID string) (*Quote, error) {
	data, err := c.get(ctx, "/api/v5/market/ticker", map[string]string{"instId": instID})
	if err != nil {
		return nil, fmt.Errorf("ticker %s: %w", instID, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("ticker %s: empty data", instID)
	}
	var t struct {
		Last string `json:"last"`
		TS   string `json:"ts"`
	}
	if err := json.Unmarshal(data[0], &t); err != nil {
		return nil, fmt.Errorf("ticker %s: %w", instID, err)
	}
	price := parseFloat(t.Last)
	if price == nil {
		return nil, fmt.Errorf("ticker %s: unparseable last price %q", instID, t.Last)
	}

	q := &Quote{InstID: instID, Price: *price, TS: time.Now().UnixMilli()}
	if ts, err := strconv.ParseInt(t.TS, 10, 64); err == nil {
		q.TS = ts
	}

	if data, err := c.get(ctx, "/api/v5/public/funding-rate", map[string]string{"instId": instID}); err == nil && len(data) > 0 {
		var f struct {
			FundingRate string `json:"fundingRate"`
		}
		if json.Unmarshal(data[0], &f) == nil {
			q.FundingRate = parseFloat(f.FundingRate)
		}
	} else if err != nil {
		log.Debug().Str("inst", instID).Err(err).Msg("funding rate unavailable")
	}

	if data, err := c.get(ctx, "/api/v5/public/open-interest", map[string]string{"instId": instID, "instType": "SWAP"}); err == nil && len(data) > 0 {
		var o struct {
			OI string `json:"oi"`
		}
		if json.Unmarshal(data[0], &o) == nil {
			q.OpenInterestContracts = parseFloat(o.OI)
		}
	} else if err != nil {
		log.Debug().Str("inst", instID).Err(err).Msg("open interest unavailable")
	}

	return q, nil
}

// Instruments fetches the full SWAP instrument listing.
func (c *OKXClient) Instruments(ctx context.Context) ([]Instrument, error) {
	data, err := c.get(ctx, "/api/v5/public/instruments", map[string]string{"instType": "SWAP"})
	if err != nil {
		return nil, fmt.Errorf("instruments: %w", err)
	}
	out := make([]Instrument, 0, len(data))
	for _, raw := range data {
		var inst Instrument
		if err := json.Unmarshal(raw, &inst); err != nil {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}
