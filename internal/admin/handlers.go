package admin

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	hpprof "net/http/pprof"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"recurpay/internal/model"
	"recurpay/internal/recurring"
	logx "recurpay/pkg/logx"
)

const maxBody = 1 << 20

type api struct {
	deps Deps
	log  logx.Logger
}

// NewHandler builds the routed API. An empty token disables auth.
func NewHandler(deps Deps, token string, pprof bool, log logx.Logger) http.Handler {
	a := &api{deps: deps, log: log}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(bearerAuth(token))
	v1.HandleFunc("/definitions", a.listDefinitions).Methods(http.MethodGet)
	v1.HandleFunc("/definitions", a.createDefinition).Methods(http.MethodPost)
	v1.HandleFunc("/definitions/{id}", a.getDefinition).Methods(http.MethodGet)
	v1.HandleFunc("/definitions/{id}", a.updateDefinition).Methods(http.MethodPatch)
	v1.HandleFunc("/definitions/{id}/duplicate", a.duplicateDefinition).Methods(http.MethodPost)
	v1.HandleFunc("/definitions/{id}/occurrences", a.listOccurrences).Methods(http.MethodGet)
	v1.HandleFunc("/accounts", a.createAccount).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{id}", a.getAccount).Methods(http.MethodGet)
	v1.HandleFunc("/categories", a.createCategory).Methods(http.MethodPost)
	v1.HandleFunc("/subcategories", a.createSubcategory).Methods(http.MethodPost)
	v1.HandleFunc("/scheduler", a.schedulerState).Methods(http.MethodGet)
	v1.HandleFunc("/scheduler/run", a.runNow).Methods(http.MethodPost)
	v1.HandleFunc("/runs", a.listRuns).Methods(http.MethodGet)

	if pprof {
		d := r.PathPrefix("/debug/pprof").Subrouter()
		d.Use(bearerAuth(token))
		d.HandleFunc("/cmdline", hpprof.Cmdline)
		d.HandleFunc("/profile", hpprof.Profile)
		d.HandleFunc("/symbol", hpprof.Symbol)
		d.HandleFunc("/trace", hpprof.Trace)
		d.PathPrefix("/").HandlerFunc(hpprof.Index)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func bearerAuth(token string) mux.MiddlewareFunc {
	tok := strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if tok == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(tok)) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Store.Ping(r.Context()); err != nil {
		a.log.Warn("health check failed", logx.Err(err))
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"scheduler": a.deps.Scheduler.Snapshot(),
	})
}

func (a *api) listDefinitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := recurring.Filter{Status: model.Status(q.Get("status"))}
	if f.Status != "" && !f.Status.Known() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", f.Status))
		return
	}
	if v := q.Get("account_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "account_id: not a uuid")
			return
		}
		f.AccountID = uuid.NullUUID{UUID: id, Valid: true}
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit: "+err.Error())
		return
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset: "+err.Error())
		return
	}

	defs, err := a.deps.Definitions.List(r.Context(), f)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(defs))
}

func (a *api) createDefinition(w http.ResponseWriter, r *http.Request) {
	var in recurring.NewDefinition
	if !decode(w, r, &in) {
		return
	}
	def, err := a.deps.Definitions.Create(r.Context(), in)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (a *api) getDefinition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	def, err := a.deps.Definitions.Get(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (a *api) updateDefinition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p recurring.Patch
	if !decode(w, r, &p) {
		return
	}
	def, err := a.deps.Definitions.Update(r.Context(), id, p)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (a *api) duplicateDefinition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	def, err := a.deps.Definitions.Duplicate(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (a *api) listOccurrences(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit: "+err.Error())
		return
	}
	occs, err := a.deps.Definitions.Occurrences(r.Context(), id, limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(occs))
}

func (a *api) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acct, err := a.deps.Store.GetAccount(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (a *api) schedulerState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.deps.Scheduler.Snapshot())
}

func (a *api) runNow(w http.ResponseWriter, r *http.Request) {
	rep, err := a.deps.Scheduler.RunOnce(r.Context())
	if err != nil {
		a.log.Error("manual tick failed", logx.Err(err))
		writeJSON(w, http.StatusBadGateway, rep)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *api) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit: "+err.Error())
		return
	}
	runs, err := a.deps.Store.ListRuns(r.Context(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(runs))
}

// fail maps domain errors to statuses; anything else is a 500 with the
// detail kept in the log.
func (a *api) fail(w http.ResponseWriter, err error) {
	var ve *recurring.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Field: ve.Field})
	case errors.Is(err, recurring.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		a.log.Error("admin request failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "id: not a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return n, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
