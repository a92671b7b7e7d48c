package agraphstore

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// httpClient is shared by every PeerClient, matching the bounded-timeout
// package-level client convention used for inter-node calls throughout the
// reference cluster code this module generalizes from.
var httpClient = &http.Client{Timeout: 5 * time.Second}

// PeerClient is a thin HTTP wrapper around one remote instance's
// RpcEndpoint, used by Remotes to broadcast, replicate, and gossip.
type PeerClient[N any, E any, K Key] struct {
	baseURL string
}

// NewPeerClient builds a client for the peer at baseURL. baseURL must not
// have a trailing slash.
func NewPeerClient[N any, E any, K Key](baseURL string) *PeerClient[N, E, K] {
	return &PeerClient[N, E, K]{baseURL: baseURL}
}

// BaseURL returns the peer's advertised base URL.
func (c *PeerClient[N, E, K]) BaseURL() string { return c.baseURL }

// Mutate sends a mutation to the peer's replication RPC and waits for its
// ack, used for quorum replication.
func (c *PeerClient[N, E, K]) Mutate(ctx context.Context, m Mutation[N, E, K]) error {
	return postCBOR(ctx, c.baseURL+"/rpc/replicate", m, nil)
}

// QueryLog fetches the peer's full mutation log, used for startup
// catch-up.
func (c *PeerClient[N, E, K]) QueryLog(ctx context.Context) (map[string]Mutation[N, E, K], error) {
	var out map[string]Mutation[N, E, K]

	if err := getCBOR(ctx, c.baseURL+"/rpc/log", &out); err != nil {
		return nil, err
	}

	return out, nil
}

// SyncRemotes performs one gossip exchange with the peer: it sends this
// instance's address and its current flat reachability view, and returns
// the peer's own flat view in reply.
func (c *PeerClient[N, E, K]) SyncRemotes(ctx context.Context, from string, view map[string]bool) (map[string]bool, error) {
	var out syncRemotesResponse

	if err := postCBOR(ctx, c.baseURL+"/rpc/peers", syncRemotesRequest{From: from, View: view}, &out); err != nil {
		return nil, err
	}

	return out.View, nil
}

// ListPeers returns the peer's known peer URLs, used for plain
// introspection (not the gossip exchange itself).
func (c *PeerClient[N, E, K]) ListPeers(ctx context.Context) ([]string, error) {
	var out []string

	if err := getCBOR(ctx, c.baseURL+"/rpc/peers", &out); err != nil {
		return nil, err
	}

	return out, nil
}

type syncRemotesRequest struct {
	From string          `cbor:"from_address"`
	View map[string]bool `cbor:"view"`
}

type syncRemotesResponse struct {
	From string          `cbor:"from_address"`
	View map[string]bool `cbor:"view"`
}

func postCBOR(ctx context.Context, url string, body any, out any) error {
	encoded, err := cbor.Marshal(body)
	if err != nil {
		return errors.Wrap(ErrSerde, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return errors.Wrap(ErrClientError, err.Error())
	}
	req.Header.Set("Content-Type", "application/cbor")

	resp, err := httpClient.Do(req)
	if err != nil {
		return errors.Wrap(ErrClientError, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Wrapf(ErrClientError, "peer returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	return cbor.NewDecoder(resp.Body).Decode(out)
}

func getCBOR(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(ErrClientError, err.Error())
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return errors.Wrap(ErrClientError, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Wrapf(ErrClientError, "peer returned status %d", resp.StatusCode)
	}

	return cbor.NewDecoder(resp.Body).Decode(out)
}
