package agraphstore

import (
	"net/http"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RpcEndpoint exposes MutationsLog and Remotes over HTTP, using CBOR
// request/response bodies so the wire codec matches the one mutation
// hashing is computed against.
type RpcEndpoint[N any, E any, K Key] struct {
	router  chi.Router
	log     *zap.Logger
	nodeID  string
	mlog    *MutationsLog[N, E, K]
	remotes *Remotes[N, E, K]
}

// NewRpcEndpoint builds the chi router for the given components. Call
// Router() to get an http.Handler suitable for http.Server.
func NewRpcEndpoint[N any, E any, K Key](nodeID string, mlog *MutationsLog[N, E, K], remotes *Remotes[N, E, K], log *zap.Logger) *RpcEndpoint[N, E, K] {
	e := &RpcEndpoint[N, E, K]{
		log:     log.With(zap.String("node_id", nodeID)),
		nodeID:  nodeID,
		mlog:    mlog,
		remotes: remotes,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", e.handleHealthz)
	r.Post("/rpc/mutate", e.handleMutate)
	r.Post("/rpc/replicate", e.handleReplicate)
	r.Get("/rpc/log", e.handleQueryLog)
	r.Post("/rpc/peers", e.handleSyncRemotes)
	r.Get("/rpc/peers", e.handleListPeers)

	e.router = r

	return e
}

// Router returns the http.Handler serving all RPCs.
func (e *RpcEndpoint[N, E, K]) Router() http.Handler { return e.router }

func (e *RpcEndpoint[N, E, K]) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (e *RpcEndpoint[N, E, K]) handleMutate(w http.ResponseWriter, r *http.Request) {
	var mutation Mutation[N, E, K]
	if err := cbor.NewDecoder(r.Body).Decode(&mutation); err != nil {
		e.writeError(w, errors.Wrap(ErrSerde, err.Error()))
		return
	}

	resp, err := e.mlog.Propose(r.Context(), mutation)
	if err != nil {
		e.writeError(w, err)
		return
	}

	e.writeCBOR(w, resp)
}

func (e *RpcEndpoint[N, E, K]) handleReplicate(w http.ResponseWriter, r *http.Request) {
	var mutation Mutation[N, E, K]
	if err := cbor.NewDecoder(r.Body).Decode(&mutation); err != nil {
		e.writeError(w, errors.Wrap(ErrSerde, err.Error()))
		return
	}

	resp, err := e.mlog.Commit(mutation)
	if err != nil {
		e.writeError(w, err)
		return
	}

	e.writeCBOR(w, resp)
}

func (e *RpcEndpoint[N, E, K]) handleQueryLog(w http.ResponseWriter, r *http.Request) {
	entries, err := e.mlog.QueryLog()
	if err != nil {
		e.writeError(w, err)
		return
	}

	e.writeCBOR(w, entries)
}

func (e *RpcEndpoint[N, E, K]) handleSyncRemotes(w http.ResponseWriter, r *http.Request) {
	var req syncRemotesRequest
	if err := cbor.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeError(w, errors.Wrap(ErrSerde, err.Error()))
		return
	}

	view, err := e.remotes.GossipIn(r.Context(), req.From, req.View)
	if err != nil {
		e.writeError(w, err)
		return
	}

	e.writeCBOR(w, syncRemotesResponse{From: e.remotes.selfURL, View: view})
}

func (e *RpcEndpoint[N, E, K]) handleListPeers(w http.ResponseWriter, r *http.Request) {
	e.writeCBOR(w, e.remotes.KnownPeerURLs())
}

func (e *RpcEndpoint[N, E, K]) writeCBOR(w http.ResponseWriter, v any) {
	encoded, err := cbor.Marshal(v)
	if err != nil {
		e.log.Error("encoding RPC response failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encoded)
}

func (e *RpcEndpoint[N, E, K]) writeError(w http.ResponseWriter, err error) {
	e.log.Error("rpc handler error", zap.Error(err))

	switch {
	case errors.Is(err, ErrNodeNotFound), errors.Is(err, ErrEdgeNotFound), errors.Is(err, ErrGraphNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, ErrConflictDuplicateNode), errors.Is(err, ErrConflictDuplicateEdge):
		w.WriteHeader(http.StatusConflict)
	case errors.Is(err, ErrParseError), errors.Is(err, ErrSerde):
		w.WriteHeader(http.StatusBadRequest)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}
