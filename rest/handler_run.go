package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/forge/logger"
	"github.com/mohitkumar/forge/model"
	"go.uber.org/zap"
)

type StartRunRequest struct {
	Team  string         `json:"team"`
	Input map[string]any `json:"input"`
}

func (s *Server) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	var runReq StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&runReq); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	runId, err := s.runService.StartRun(runReq.Team, runReq.Input)
	if err != nil {
		logger.Error("error starting run", zap.String("team", runReq.Team), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, map[string]any{"runId": runId})
}

func (s *Server) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runId := mux.Vars(r)["id"]
	status, err := s.runService.Status(runId)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "run not found")
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

func (s *Server) HandleSubmitApproval(w http.ResponseWriter, r *http.Request) {
	runId := mux.Vars(r)["id"]
	var decision model.ApprovalDecision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	if err := s.runService.SubmitApproval(runId, decision); err != nil {
		logger.Error("error submitting approval", zap.String("runId", runId), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleGetTrace(w http.ResponseWriter, r *http.Request) {
	runId := mux.Vars(r)["id"]
	events, err := s.runService.Trace(runId)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "run not found")
		return
	}
	respondWithJSON(w, http.StatusOK, events)
}

func (s *Server) HandleGetCost(w http.ResponseWriter, r *http.Request) {
	runId := mux.Vars(r)["id"]
	summary, err := s.runService.Cost(runId)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "run not found")
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}
