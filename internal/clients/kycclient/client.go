package kycclient

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

const statusPath = "/api/v1/kyc/status"

type KycInterface interface {
	// IsVerified reports the KYC approval fact for the user. The core
	// consumes the boolean and never adjudicates.
	IsVerified(ctx context.Context, userID string) (bool, error)
}

type Client struct {
	httpClient *http.Client
	cfg        *config.KycConfig
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

func NewClient(cfg *config.KycConfig) *Client {
	return &Client{
		httpClient: &http.Client{},
		cfg:        cfg,
	}
}

func (c *Client) IsVerified(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, &types.ValidationError{Field: "userId", Message: "must not be empty"}
	}

	type empty struct{}
	type statusResponse struct {
		UserID   string `json:"user_id"`
		Approved bool   `json:"approved"`
	}

	callForStatus := func() (bool, error) {
		opts := &client.HttpClientOptions{
			Path:         statusPath + "/" + userID,
			TemplatePath: statusPath,
		}

		resp, err := client.SendRequest[empty, statusResponse](ctx, c, http.MethodGet, opts, nil)
		if err != nil {
			return false, err
		}
		return resp.Approved, nil
	}

	approved, err := retry.DoWithData(callForStatus,
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
				Msg("failed to call the KYC provider")
		}))
	if err != nil {
		return false, &types.ExternalServiceError{Service: "kyc", Err: err}
	}
	return approved, nil
}
