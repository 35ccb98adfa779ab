package chainclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"github.com/bookledger-io/equity-ledger/internal/clients/client"
	"github.com/bookledger-io/equity-ledger/internal/config"
	"github.com/bookledger-io/equity-ledger/internal/observability/metrics"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

const (
	getTransactionPath = "/api/v1/tx"
	broadcastPath      = "/api/v1/tx/broadcast"
)

// ChainClient talks to the chain confirmation collaborator. Every call
// goes through the circuit breaker first and retries with exponential
// backoff inside it; while the breaker is open, confirmation-dependent
// transitions fail fast instead of hanging.
type ChainClient struct {
	httpClient *http.Client
	cfg        *config.ChainConfig
	breaker    *gobreaker.CircuitBreaker[any]
}

func (c *ChainClient) GetBaseURL() string {
	return c.cfg.Endpoint
}

func (c *ChainClient) GetDefaultRequestTimeout() time.Duration {
	return c.cfg.Timeout
}

func (c *ChainClient) GetHttpClient() *http.Client {
	return c.httpClient
}

func NewChainClient(cfg *config.ChainConfig) *ChainClient {
	settings := gobreaker.Settings{
		Name:    "chain-client",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("chain client circuit breaker state changed")
			metrics.RecordBreakerOpen(to == gobreaker.StateOpen)
		},
	}

	return &ChainClient{
		httpClient: &http.Client{},
		cfg:        cfg,
		breaker:    gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (c *ChainClient) GetTransaction(ctx context.Context, txid string) (*TxDetails, error) {
	if txid == "" {
		return nil, &types.ValidationError{Field: "txid", Message: "must not be empty"}
	}

	callForTx := func() (*TxDetails, error) {
		opts := &client.HttpClientOptions{
			Path:         getTransactionPath + "/" + txid,
			TemplatePath: getTransactionPath,
		}

		type empty struct{}
		resp, err := client.SendRequest[empty, TxDetails](ctx, c, http.MethodGet, opts, nil)
		if err != nil {
			if isNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		return resp, nil
	}

	details, err := callWithBreaker(c, "GetTransaction", func() (*TxDetails, error) {
		return clientCallWithRetry(ctx, callForTx, c.cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get chain transaction %s: %w", txid, err)
	}
	return details, nil
}

func (c *ChainClient) IsConfirmed(ctx context.Context, txid string, minConfirmations uint64) (bool, error) {
	details, err := c.GetTransaction(ctx, txid)
	if err != nil {
		return false, err
	}
	if details == nil {
		return false, nil
	}
	return details.Confirmations >= minConfirmations, nil
}

func (c *ChainClient) Broadcast(ctx context.Context, rawTx string) (string, error) {
	if rawTx == "" {
		return "", &types.ValidationError{Field: "rawTx", Message: "must not be empty"}
	}

	type broadcastRequest struct {
		RawTx string `json:"raw_tx"`
	}
	type broadcastResponse struct {
		TxID string `json:"txid"`
	}

	callForBroadcast := func() (string, error) {
		opts := &client.HttpClientOptions{
			Path:         broadcastPath,
			TemplatePath: broadcastPath,
		}

		resp, err := client.SendRequest[broadcastRequest, broadcastResponse](
			ctx, c, http.MethodPost, opts, &broadcastRequest{RawTx: rawTx},
		)
		if err != nil {
			return "", err
		}
		return resp.TxID, nil
	}

	txid, err := callWithBreaker(c, "Broadcast", func() (string, error) {
		return clientCallWithRetry(ctx, callForBroadcast, c.cfg)
	})
	if err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	return txid, nil
}

func callWithBreaker[T any](
	c *ChainClient, method string, call func() (T, error),
) (T, error) {
	startTime := time.Now()

	result, err := c.breaker.Execute(func() (any, error) {
		return call()
	})

	metrics.RecordChainClientLatency(time.Since(startTime), method, err != nil)

	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, &types.CircuitOpenError{Service: "chain"}
		}
		return zero, &types.ExternalServiceError{Service: "chain", Err: err}
	}
	return result.(T), nil
}

func clientCallWithRetry[T any](
	ctx context.Context, call retry.RetryableFuncWithData[T], cfg *config.ChainConfig,
) (T, error) {
	result, err := retry.DoWithData(call,
		retry.Context(ctx),
		retry.Attempts(cfg.MaxRetryTimes),
		retry.Delay(cfg.RetryInterval),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(cfg.RetryInterval),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Debug().
				Uint("attempt", n+1).
				Uint("max_attempts", cfg.MaxRetryTimes).
				Err(err).
				Msg("failed to call the chain confirmation API")
		}))

	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "status 404")
}
