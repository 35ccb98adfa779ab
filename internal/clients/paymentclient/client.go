package paymentclient

import (
	"context"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/bookledger-io/equity-ledger/internal/clients/client"
	"github.com/bookledger-io/equity-ledger/internal/config"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

const verifyPath = "/api/v1/payments/verify"

type PaymentInterface interface {
	// IsPaymentVerified reports whether the checkout reference has been
	// settled by the payment provider.
	IsPaymentVerified(ctx context.Context, reference string) (bool, error)
}

type Client struct {
	httpClient *http.Client
	cfg        *config.PaymentConfig
}

func (c *Client) GetBaseURL() string {
	return c.cfg.Endpoint
}

func (c *Client) GetDefaultRequestTimeout() time.Duration {
	return c.cfg.Timeout
}

func (c *Client) GetHttpClient() *http.Client {
	return c.httpClient
}

func NewClient(cfg *config.PaymentConfig) *Client {
	return &Client{
		httpClient: &http.Client{},
		cfg:        cfg,
	}
}

func (c *Client) IsPaymentVerified(ctx context.Context, reference string) (bool, error) {
	if reference == "" {
		return false, &types.ValidationError{Field: "reference", Message: "must not be empty"}
	}

	type empty struct{}
	type verifyResponse struct {
		Reference string `json:"reference"`
		Verified  bool   `json:"verified"`
	}

	callForVerify := func() (bool, error) {
		opts := &client.HttpClientOptions{
			Path:         verifyPath + "/" + reference,
			TemplatePath: verifyPath,
		}

		resp, err := client.SendRequest[empty, verifyResponse](ctx, c, http.MethodGet, opts, nil)
		if err != nil {
			return false, err
		}
		return resp.Verified, nil
	}

	verified, err := retry.DoWithData(callForVerify,
		retry.Context(ctx),
		retry.Attempts(c.cfg.MaxRetryTimes),
		retry.Delay(c.cfg.RetryInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Debug().
				Uint("attempt", n+1).
				Uint("max_attempts", c.cfg.MaxRetryTimes).
				Err(err).
				Msg("failed to call the payment provider")
		}))
	if err != nil {
		return false, &types.ExternalServiceError{Service: "payment", Err: err}
	}
	return verified, nil
}
