package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	pcnerrors "pcnchain/core/errors"
	"pcnchain/crypto"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// writeEngineError maps an engine failure onto an HTTP status by error kind.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	kind, ok := pcnerrors.KindOf(err)
	if !ok {
		s.logger.Error("query failed", "path", r.URL.Path, "request_id", RequestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	status := http.StatusBadRequest
	switch kind {
	case pcnerrors.KindNotFound, pcnerrors.KindRoute:
		status = http.StatusNotFound
	case pcnerrors.KindAuthorization:
		status = http.StatusForbidden
	case pcnerrors.KindState:
		status = http.StatusConflict
	case pcnerrors.KindFunds:
		status = http.StatusUnprocessableEntity
	}
	code := pcnerrors.CodeOf(err)
	if code == "" {
		code = kind.String()
	}
	writeError(w, status, code, err.Error())
}

var errBadRequest = errors.New("bad request")

func uintParam(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, errBadRequest
	}
	return v, nil
}

func addressParam(raw string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, errBadRequest
	}
	return addr, nil
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", "channel id must be an unsigned integer")
		return
	}
	ch, err := s.backends.Channels.Channel(id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newChannelResponse(ch))
}

func (s *Server) handleChannelStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", "channel id must be an unsigned integer")
		return
	}
	label, err := s.backends.Channels.StatusLabel(id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{ID: id, State: label})
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", "channel id must be an unsigned integer")
		return
	}
	side, err := addressParam(chi.URLParam(r, "participant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", "invalid participant address")
		return
	}
	proof, err := s.backends.Channels.Proof(id, side)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProofResponse(proof))
}

func (s *Server) handleHTLC(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", "htlc id must be an unsigned integer")
		return
	}
	h, err := s.backends.HTLCs.Get(id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newHTLCResponse(h))
}

func (s *Server) handlePendingHTLCs(w http.ResponseWriter, r *http.Request) {
	pending, err := s.backends.HTLCs.Pending()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	out := make([]HTLCResponse, 0, len(pending))
	for _, h := range pending {
		out = append(out, newHTLCResponse(h))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleParticipant(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", "invalid participant address")
		return
	}
	p, err := s.backends.Participants.Participant(addr)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newParticipantResponse(p))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.backends.Channels.Stats()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatsResponse(stats))
}

// handleRoute answers /routes?from=&to=&amount=. An unreachable receiver is
// reported as exists=false rather than an error status.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, err := addressParam(query.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", "invalid from address")
		return
	}
	to, err := addressParam(query.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", "invalid to address")
		return
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(query.Get("amount")), 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_params", "amount must be a base-10 integer")
		return
	}
	route, err := s.backends.Routes.FindRoute(from, to, amount)
	if err != nil {
		if errors.Is(err, pcnerrors.ErrRoute) || errors.Is(err, pcnerrors.ErrFunds) {
			writeJSON(w, http.StatusOK, RouteResponse{Exists: false})
			return
		}
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRouteResponse(route))
}
