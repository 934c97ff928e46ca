package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/forge/logger"
	"github.com/mohitkumar/forge/metadata"
	"go.uber.org/zap"
)

func (s *Server) HandleRegisterTeam(w http.ResponseWriter, r *http.Request) {
	var def metadata.TeamDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	if err := s.metadataService.RegisterTeam(&def); err != nil {
		logger.Error("error registering team", zap.String("team", def.Name), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, map[string]any{"created": true})
}

func (s *Server) HandleGetTeam(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	def, err := s.metadataService.GetStorage().GetTeamDefinition(name)
	if err != nil {
		logger.Info("team does not exist", zap.String("name", name))
		respondWithError(w, http.StatusNotFound, "team does not exist")
		return
	}
	respondWithJSON(w, http.StatusOK, def)
}

func (s *Server) HandleListTeams(w http.ResponseWriter, r *http.Request) {
	names, err := s.metadataService.GetStorage().ListTeamDefinitions()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "error listing teams")
		return
	}
	respondWithJSON(w, http.StatusOK, names)
}

func (s *Server) HandleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.metadataService.GetStorage().DeleteTeamDefinition(name); err != nil {
		respondWithError(w, http.StatusBadRequest, "error deleting team")
		return
	}
	respondOKWithoutBody(w)
}
