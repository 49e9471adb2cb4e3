package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/civitas-labs/govern/core"
)

// callerHeader carries the caller identity. The ledger itself never guesses
// who is calling; the transport supplies it explicitly.
const callerHeader = "X-Caller"

// Server exposes the governance ledger over HTTP. Mutating endpoints
// serialize inside the ledger; read endpoints run concurrently.
type Server struct {
	ledger *core.Ledger
	logger *logrus.Logger
	router *mux.Router
	server *http.Server
	listen string

	// now supplies the clock for every mutating operation
	now func() uint64
}

func NewServer(ledger *core.Ledger, listen string) *Server {
	s := &Server{
		ledger: ledger,
		logger: log.New(),
		listen: listen,
		now:    func() uint64 { return uint64(time.Now().Unix()) },
	}
	s.setupRoutes()
	return s
}

// WithClock overrides the server clock. Tests use this to drive proposals
// through their voting windows.
func (s *Server) WithClock(now func() uint64) *Server {
	s.now = now
	return s
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	// proposal lifecycle
	s.router.HandleFunc("/api/proposals", s.createProposal).Methods("POST")
	s.router.HandleFunc("/api/proposals/{id}/options", s.addOption).Methods("POST")
	s.router.HandleFunc("/api/proposals/{id}/activate", s.activate).Methods("POST")
	s.router.HandleFunc("/api/proposals/{id}/finalize", s.finalize).Methods("POST")
	s.router.HandleFunc("/api/proposals/{id}/winner", s.declareWinner).Methods("POST")
	s.router.HandleFunc("/api/proposals/{id}/cancel", s.cancel).Methods("POST")

	// voting
	s.router.HandleFunc("/api/proposals/{id}/votes", s.castVote).Methods("POST")
	s.router.HandleFunc("/api/proposals/{id}/votes/delegated", s.voteViaDelegation).Methods("POST")

	// delegation
	s.router.HandleFunc("/api/delegation", s.delegate).Methods("POST")
	s.router.HandleFunc("/api/delegation", s.revokeDelegation).Methods("DELETE")
	s.router.HandleFunc("/api/delegation/{address}", s.getDelegation).Methods("GET")
	s.router.HandleFunc("/api/delegation/{address}/active", s.delegationActive).Methods("GET")
	s.router.HandleFunc("/api/delegation/{address}/resolve", s.resolveDelegate).Methods("GET")

	// admin
	s.router.HandleFunc("/api/admin/pause", s.pause).Methods("POST")
	s.router.HandleFunc("/api/admin/resume", s.resume).Methods("POST")

	// read-only projections
	s.router.HandleFunc("/api/proposals/{id}", s.getProposal).Methods("GET")
	s.router.HandleFunc("/api/proposals/{id}/options/{index}", s.getOption).Methods("GET")
	s.router.HandleFunc("/api/proposals/{id}/options/{index}/power", s.getOptionPower).Methods("GET")
	s.router.HandleFunc("/api/proposals/{id}/votes/{address}", s.getVote).Methods("GET")
	s.router.HandleFunc("/api/proposals/{id}/voted/{address}", s.hasVoted).Methods("GET")
	s.router.HandleFunc("/api/proposals/{id}/voters/{index}", s.voterByIndex).Methods("GET")
	s.router.HandleFunc("/api/proposals/{id}/results", s.getResults).Methods("GET")
	s.router.HandleFunc("/api/proposals/{id}/quorum", s.quorumMet).Methods("GET")
	s.router.HandleFunc("/api/proposals/{id}/winner", s.getWinner).Methods("GET")
	s.router.HandleFunc("/api/proposals/{id}/status", s.getStatus).Methods("GET")
	s.router.HandleFunc("/api/power", s.projectPower).Methods("GET")
	s.router.HandleFunc("/api/totals", s.getTotals).Methods("GET")
	s.router.HandleFunc("/api/health", s.health).Methods("GET")
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.listen,
		Handler: s.router,
	}

	s.logger.Infof("api listening on %s", s.listen)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("api server: %s", err)
		}
	}()

	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// ---- mutating handlers ----

type createProposalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Mechanism   string `json:"mechanism"`
	Start       uint64 `json:"start"`
	End         uint64 `json:"end"`
	QuorumBP    uint64 `json:"quorum_bp"`
	ApprovalBP  uint64 `json:"approval_bp"`
}

func (s *Server) createProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req createProposalRequest
	if !decode(w, r, &req) {
		return
	}

	mechanism, err := core.ParseMechanism(req.Mechanism)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := s.ledger.CreateProposal(caller, s.now(), req.Title, req.Description, mechanism, req.Start, req.End, req.QuorumBP, req.ApprovalBP)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
}

func (s *Server) addOption(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}

	index, err := s.ledger.AddOption(caller, s.now(), id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint32{"index": index})
}

func (s *Server) activate(w http.ResponseWriter, r *http.Request) {
	s.simpleMutation(w, r, s.ledger.Activate)
}

func (s *Server) finalize(w http.ResponseWriter, r *http.Request) {
	s.simpleMutation(w, r, s.ledger.Finalize)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	s.simpleMutation(w, r, s.ledger.Cancel)
}

func (s *Server) simpleMutation(w http.ResponseWriter, r *http.Request, op func(common.Address, uint64, uint64) error) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := op(caller, s.now(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) declareWinner(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Option uint32 `json:"option"`
	}
	if !decode(w, r, &req) {
		return
	}

	option, err := s.ledger.DeclareWinner(caller, s.now(), id, req.Option)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"option": option})
}

type voteRequest struct {
	Option   uint32 `json:"option"`
	RawPower uint64 `json:"raw_power"`
}

func (s *Server) castVote(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req voteRequest
	if !decode(w, r, &req) {
		return
	}

	if err := s.ledger.CastVote(caller, s.now(), id, req.Option, req.RawPower); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) voteViaDelegation(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Delegator string `json:"delegator"`
		voteRequest
	}
	if !decode(w, r, &req) {
		return
	}
	if !common.IsHexAddress(req.Delegator) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid delegator address"))
		return
	}

	err := s.ledger.VoteViaDelegation(caller, s.now(), id, common.HexToAddress(req.Delegator), req.Option, req.RawPower)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) delegate(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req struct {
		Delegate string `json:"delegate"`
	}
	if !decode(w, r, &req) {
		return
	}
	if !common.IsHexAddress(req.Delegate) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid delegate address"))
		return
	}

	if err := s.ledger.Delegate(caller, s.now(), common.HexToAddress(req.Delegate)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) revokeDelegation(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	if err := s.ledger.RevokeDelegation(caller, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.ledger.Pause(caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.ledger.Resume(caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

// ---- read-only handlers ----

func (s *Server) getProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := s.ledger.GetProposal(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) getOption(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	index, ok := pathUint32(w, r, "index")
	if !ok {
		return
	}
	o, err := s.ledger.GetOption(id, index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) getOptionPower(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	index, ok := pathUint32(w, r, "index")
	if !ok {
		return
	}
	power, err := s.ledger.OptionPower(id, index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"power": power})
}

func (s *Server) getVote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	v, err := s.ledger.GetVote(id, addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) hasVoted(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	voted, err := s.ledger.HasVoted(id, addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"voted": voted})
}

func (s *Server) voterByIndex(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	index, ok := pathUint32(w, r, "index")
	if !ok {
		return
	}
	addr, err := s.ledger.VoterByIndex(id, int(index))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"voter": addr.Hex()})
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := s.ledger.GetResults(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) quorumMet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	met, err := s.ledger.QuorumMet(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"met": met})
}

func (s *Server) getWinner(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	winner, err := s.ledger.Winner(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*uint32{"winner": winner})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	status, err := s.ledger.Status(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status.String()})
}

func (s *Server) getDelegation(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	d, err := s.ledger.GetDelegation(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) delegationActive(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": s.ledger.DelegationActive(addr)})
}

func (s *Server) resolveDelegate(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	resolved, err := s.ledger.ResolveDelegate(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"delegate": resolved.Hex()})
}

func (s *Server) projectPower(w http.ResponseWriter, r *http.Request) {
	mechanism, err := core.ParseMechanism(r.URL.Query().Get("mechanism"))
	if err != nil {
		writeError(w, err)
		return
	}
	raw, err := strconv.ParseUint(r.URL.Query().Get("raw"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid raw power"))
		return
	}
	power, err := s.ledger.ProjectPower(mechanism, raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"power": power})
}

func (s *Server) getTotals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Totals())
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"paused": s.ledger.Paused(),
	})
}

// ---- helpers ----

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := r.Header.Get(callerHeader)
	if !common.IsHexAddress(raw) {
		writeJSON(w, http.StatusBadRequest, errorBody("missing or invalid X-Caller address"))
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid proposal id"))
		return 0, false
	}
	return id, true
}

func pathUint32(w http.ResponseWriter, r *http.Request, name string) (uint32, bool) {
	v, err := strconv.ParseUint(mux.Vars(r)[name], 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid "+name))
		return 0, false
	}
	return uint32(v), true
}

func pathAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := mux.Vars(r)["address"]
	if !common.IsHexAddress(raw) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid address"))
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps ledger error conditions onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, core.ErrProposalNotFound),
		errors.Is(err, core.ErrVoteNotFound),
		errors.Is(err, core.ErrNoDelegation):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrOwnerOnly),
		errors.Is(err, core.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, core.ErrAlreadyVoted),
		errors.Is(err, core.ErrAlreadyFinalized),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrCircularDelegation):
		status = http.StatusConflict
	case errors.Is(err, core.ErrSystemPaused):
		status = http.StatusServiceUnavailable
	case errors.Is(err, core.ErrInvalidOption),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidThreshold),
		errors.Is(err, core.ErrInvalidVotingType),
		errors.Is(err, core.ErrVotingNotStarted),
		errors.Is(err, core.ErrVotingEnded),
		errors.Is(err, core.ErrProposalNotActive),
		errors.Is(err, core.ErrNotFinalized),
		errors.Is(err, core.ErrSelfDelegation),
		errors.Is(err, core.ErrNoVotingPower):
		status = http.StatusBadRequest
	}

	writeJSON(w, status, errorBody(err.Error()))
}
