package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"signeddoc/pkg/authn"
	"signeddoc/pkg/db"
	"signeddoc/pkg/dochash"
	"signeddoc/pkg/envelope"
	"signeddoc/pkg/httpx"
	"signeddoc/pkg/keyid"
	"signeddoc/pkg/metadata"
	"signeddoc/pkg/store"
	"signeddoc/pkg/submission"
	"signeddoc/pkg/uuidx"
	"signeddoc/pkg/validator"
	"signeddoc/services/validate/internal/config"
	pgstore "signeddoc/services/validate/internal/store"
)

// maxDocumentSize bounds the accepted envelope size.
const maxDocumentSize = 8 << 20

func main() {
	configPath := flag.String("config", "", "path to the JSON config file")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}
	mode, err := submission.ParseCountingMode(cfg.CountingMode)
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("connect database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := pgstore.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		log.Error("ensure schema", "err", err)
		os.Exit(1)
	}
	if err := authn.EnsureSchema(ctx, pool); err != nil {
		log.Error("ensure schema", "err", err)
		os.Exit(1)
	}

	docs := store.NewRetrying(st, cfg.RetryAttempts, cfg.RetryBackoff)
	v := validator.New(docs, st, validator.Options{
		FutureThreshold: cfg.FutureThreshold,
		PastThreshold:   cfg.PastThreshold,
	})
	agg := submission.New(docs, mode)

	srv := &server{log: log, store: st, validator: v, aggregator: agg, network: cfg.Network}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Put("/document", srv.acceptDocument)
	r.Post("/document/validate", srv.validateDocument)
	r.Get("/document/{id}/{ver}", srv.getDocument)
	r.Get("/document/{id}/chain", srv.verifyChain)
	r.Get("/document/{id}", srv.getLatest)
	r.Get("/proposal/{id}/{ver}/submission", srv.submissionState)
	if cfg.RequireAuth {
		r.With(authn.Middleware(pool, "keys.register")).Post("/keys", srv.registerKey)
	} else {
		r.Post("/keys", srv.registerKey)
	}

	log.Info("listening", "addr", cfg.ListenAddr, "network", cfg.Network, "counting_mode", mode.String())
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Error("serve", "err", err)
		os.Exit(1)
	}
}

type server struct {
	log        *slog.Logger
	store      *pgstore.Store
	validator  *validator.Validator
	aggregator *submission.Aggregator
	network    string
}

func (s *server) readEnvelope(w http.ResponseWriter, r *http.Request) []byte {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize+1))
	if err != nil {
		httpx.WriteError(w, 400, "BAD_BODY", err.Error())
		return nil
	}
	if len(raw) == 0 || len(raw) > maxDocumentSize {
		httpx.WriteError(w, 400, "BAD_BODY", "document body is empty or too large")
		return nil
	}
	return raw
}

// acceptDocument validates a document and, on acceptance, stores it.
func (s *server) acceptDocument(w http.ResponseWriter, r *http.Request) {
	raw := s.readEnvelope(w, r)
	if raw == nil {
		return
	}
	dec, doc, err := s.validator.ValidateBytes(r.Context(), raw)
	if err != nil {
		s.log.Error("validate", "err", err)
		httpx.WriteError(w, 500, "VALIDATION_FAILED", err.Error())
		return
	}
	if !dec.Accepted {
		status := 422
		if dec.Indeterminate {
			status = 503
		}
		httpx.WriteRejection(w, status, dec.Problems)
		return
	}

	if err := s.store.Accept(r.Context(), doc); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			httpx.WriteError(w, 409, "DUPLICATE", err.Error())
		case errors.Is(err, store.ErrStaleVersion), errors.Is(err, store.ErrChainFork):
			httpx.WriteError(w, 409, "CONFLICT", err.Error())
		default:
			s.log.Error("accept", "err", err)
			httpx.WriteError(w, 503, "STORE_UNAVAILABLE", err.Error())
		}
		return
	}

	c, err := dochash.CIDOf(doc.Bytes())
	if err != nil {
		httpx.WriteError(w, 500, "HASH_FAILED", err.Error())
		return
	}
	s.log.Info("document accepted",
		"id", doc.Meta.ID, "ver", doc.Meta.Ver, "type", doc.Meta.PrimaryType(), "cid", c.String())
	httpx.WriteJSON(w, 201, map[string]any{
		"request_id": httpx.NewRequestID(),
		"accepted":   true,
		"id":         doc.Meta.ID,
		"ver":        doc.Meta.Ver,
		"cid":        c.String(),
	})
}

// validateDocument dry-runs validation without storing anything.
func (s *server) validateDocument(w http.ResponseWriter, r *http.Request) {
	raw := s.readEnvelope(w, r)
	if raw == nil {
		return
	}
	dec, _, err := s.validator.ValidateBytes(r.Context(), raw)
	if err != nil {
		s.log.Error("validate", "err", err)
		httpx.WriteError(w, 500, "VALIDATION_FAILED", err.Error())
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id": httpx.NewRequestID(),
		"decision":   dec,
	})
}

func (s *server) getDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuidx.ParseV7(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, 400, "BAD_ID", err.Error())
		return
	}
	ver, err := uuidx.ParseV7(chi.URLParam(r, "ver"))
	if err != nil {
		httpx.WriteError(w, 400, "BAD_VER", err.Error())
		return
	}
	doc, err := s.store.GetDocument(r.Context(), metadata.DocumentRef{ID: id, Ver: ver})
	s.writeRaw(w, doc, err)
}

func (s *server) getLatest(w http.ResponseWriter, r *http.Request) {
	id, err := uuidx.ParseV7(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, 400, "BAD_ID", err.Error())
		return
	}
	doc, err := s.store.GetLatest(r.Context(), id)
	s.writeRaw(w, doc, err)
}

// verifyChain re-walks the accepted chain of a document. One broken link
// invalidates the whole chain.
func (s *server) verifyChain(w http.ResponseWriter, r *http.Request) {
	id, err := uuidx.ParseV7(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, 400, "BAD_ID", err.Error())
		return
	}
	dec, err := s.validator.VerifyChain(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, 503, "STORE_UNAVAILABLE", err.Error())
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id":    httpx.NewRequestID(),
		"id":            id,
		"intact":        dec.Accepted,
		"indeterminate": dec.Indeterminate,
		"problems":      dec.Problems,
	})
}

func (s *server) writeRaw(w http.ResponseWriter, doc *envelope.Document, err error) {
	if err != nil {
		httpx.WriteError(w, 503, "STORE_UNAVAILABLE", err.Error())
		return
	}
	if doc == nil {
		httpx.WriteError(w, 404, "NOT_FOUND", "document version is not accepted")
		return
	}
	w.Header().Set("content-type", "application/cbor")
	w.WriteHeader(200)
	_, _ = w.Write(doc.Bytes())
}

// submissionState answers whether a proposal version is submitted.
func (s *server) submissionState(w http.ResponseWriter, r *http.Request) {
	id, err := uuidx.ParseV7(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, 400, "BAD_ID", err.Error())
		return
	}
	ver, err := uuidx.ParseV7(chi.URLParam(r, "ver"))
	if err != nil {
		httpx.WriteError(w, 400, "BAD_VER", err.Error())
		return
	}
	doc, err := s.store.GetDocument(r.Context(), metadata.DocumentRef{ID: id, Ver: ver})
	if err != nil {
		httpx.WriteError(w, 503, "STORE_UNAVAILABLE", err.Error())
		return
	}
	if doc == nil {
		httpx.WriteError(w, 404, "NOT_FOUND", "proposal version is not accepted")
		return
	}
	final, err := s.aggregator.IsFinal(r.Context(), doc)
	if err != nil {
		httpx.WriteError(w, 503, "STORE_UNAVAILABLE", err.Error())
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id": httpx.NewRequestID(),
		"id":         id,
		"ver":        ver,
		"final":      final,
	})
}

// registerKey registers a signer public key for the service network.
func (s *server) registerKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KeyID string `json:"key_id"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error())
		return
	}
	kid, err := keyid.Parse(req.KeyID)
	if err != nil {
		httpx.WriteError(w, 400, "BAD_KEY_ID", err.Error())
		return
	}
	if kid.Network != s.network {
		httpx.WriteError(w, 400, "WRONG_NETWORK", "key id network is "+kid.Network)
		return
	}
	if err := s.store.RegisterKey(r.Context(), kid, kid.PublicKey); err != nil {
		httpx.WriteError(w, 503, "STORE_UNAVAILABLE", err.Error())
		return
	}
	s.log.Info("key registered",
		"short_id", kid.ShortID(), "role", kid.Role.String(),
		"key", hex.EncodeToString(kid.PublicKey))
	httpx.WriteJSON(w, 201, map[string]any{
		"request_id": httpx.NewRequestID(),
		"short_id":   kid.ShortID(),
	})
}
