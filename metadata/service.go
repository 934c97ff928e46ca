package metadata

import (
	"github.com/mohitkumar/forge/model"
)

type MetadataService interface {
	RegisterTeam(def *TeamDefinition) error
	GetTeam(name string) (*model.WorkflowGraph, map[string]*model.AgentSpec, error)
	GetStorage() Storage
}

var _ MetadataService = new(metadataService)

type metadataService struct {
	storage Storage
}

func NewMetadataService(storage Storage) MetadataService {
	return &metadataService{storage: storage}
}

// RegisterTeam validates by building; a definition that does not compile is
// never stored.
func (s *metadataService) RegisterTeam(def *TeamDefinition) error {
	if _, _, err := Build(def); err != nil {
		return err
	}
	return s.storage.SaveTeamDefinition(*def)
}

func (s *metadataService) GetTeam(name string) (*model.WorkflowGraph, map[string]*model.AgentSpec, error) {
	def, err := s.storage.GetTeamDefinition(name)
	if err != nil {
		return nil, nil, err
	}
	return Build(def)
}

func (s *metadataService) GetStorage() Storage {
	return s.storage
}
