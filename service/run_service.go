package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/forge/agent"
	"github.com/mohitkumar/forge/approval"
	"github.com/mohitkumar/forge/config"
	"github.com/mohitkumar/forge/engine"
	"github.com/mohitkumar/forge/llm"
	"github.com/mohitkumar/forge/logger"
	"github.com/mohitkumar/forge/memory"
	"github.com/mohitkumar/forge/metadata"
	"github.com/mohitkumar/forge/model"
	"github.com/mohitkumar/forge/tool"
	"github.com/mohitkumar/forge/trace"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const completedRunTTL = time.Hour

// Run is one workflow execution with its own recorder and cancel handle.
type Run struct {
	Id        string
	Team      string
	StartedAt time.Time

	mu       sync.RWMutex
	state    model.RunState
	result   *model.WorkflowResult
	recorder *trace.Recorder
	cancel   context.CancelFunc
}

func (r *Run) State() model.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Run) setState(state model.RunState) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
}

func (r *Run) Result() *model.WorkflowResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result
}

// RunService owns the run lifecycle: it compiles teams, starts concurrent
// runs, tracks their state and keeps finished runs around for status and
// trace queries.
type RunService struct {
	metadataService metadata.MetadataService
	client          llm.Client
	memStore        memory.Store
	registry        *tool.Registry
	approvals       *approval.Manager
	conf            config.Config

	mu        sync.RWMutex
	active    map[string]*Run
	completed *cache.Cache
	wg        sync.WaitGroup
}

func NewRunService(metadataService metadata.MetadataService, client llm.Client, memStore memory.Store, registry *tool.Registry, approvals *approval.Manager, conf config.Config) *RunService {
	return &RunService{
		metadataService: metadataService,
		client:          client,
		memStore:        memStore,
		registry:        registry,
		approvals:       approvals,
		conf:            conf,
		active:          make(map[string]*Run),
		completed:       cache.New(completedRunTTL, 2*completedRunTTL),
	}
}

// StartRun launches a workflow asynchronously and returns its run id.
func (s *RunService) StartRun(teamName string, input map[string]any) (string, error) {
	graph, agents, err := s.metadataService.GetTeam(teamName)
	if err != nil {
		return "", err
	}
	s.applyDefaults(graph)
	run := s.launch(graph, agents, input)
	return run.Id, nil
}

// applyDefaults fills control knobs the definition left unset from the
// engine configuration.
func (s *RunService) applyDefaults(graph *model.WorkflowGraph) {
	if graph.Control.MaxSteps <= 0 {
		graph.Control.MaxSteps = s.conf.Engine.MaxSteps
	}
	if graph.Control.TimeoutSeconds <= 0 {
		graph.Control.TimeoutSeconds = s.conf.Engine.TimeoutSeconds
	}
	if graph.Control.StepTimeoutSeconds <= 0 {
		graph.Control.StepTimeoutSeconds = s.conf.Engine.StepTimeoutSeconds
	}
	if s.conf.Engine.DryRun {
		graph.Control.DryRun = true
	}
}

// Execute runs a compiled definition synchronously, used by the cli.
func (s *RunService) Execute(ctx context.Context, def *metadata.TeamDefinition, input map[string]any, collector trace.Collector) (*model.WorkflowResult, []model.TraceEvent, error) {
	graph, agents, err := metadata.Build(def)
	if err != nil {
		return nil, nil, err
	}
	s.applyDefaults(graph)
	var opts []trace.Option
	if collector != nil {
		opts = append(opts, trace.WithCollector(collector))
	}
	recorder := trace.NewRecorder(s.conf.RecorderCapacity, opts...)
	defer recorder.Close()

	scheduler := s.newScheduler(recorder)
	runId := uuid.NewString()
	result := scheduler.Run(ctx, runId, graph, agents, input)
	recorder.Flush()
	return result, recorder.History(), nil
}

func (s *RunService) launch(graph *model.WorkflowGraph, agents map[string]*model.AgentSpec, input map[string]any) *Run {
	var opts []trace.Option
	if s.conf.TraceExportFile != "" {
		collector, err := trace.NewLogFileCollector(s.conf.TraceExportFile)
		if err != nil {
			logger.Error("error opening trace export file", zap.String("file", s.conf.TraceExportFile), zap.Error(err))
		} else {
			opts = append(opts, trace.WithCollector(collector))
		}
	}
	recorder := trace.NewRecorder(s.conf.RecorderCapacity, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	run := &Run{
		Id:        uuid.NewString(),
		Team:      graph.Name,
		StartedAt: time.Now(),
		state:     model.RUN_RUNNING,
		recorder:  recorder,
		cancel:    cancel,
	}
	s.mu.Lock()
	s.active[run.Id] = run
	s.mu.Unlock()

	events := recorder.Subscribe()
	s.wg.Add(2)
	go s.watchState(run, events)
	go func() {
		defer s.wg.Done()
		scheduler := s.newScheduler(recorder)
		result := scheduler.Run(ctx, run.Id, graph, agents, input)
		cancel()

		run.mu.Lock()
		run.result = result
		if result.Success {
			run.state = model.RUN_COMPLETED
		} else {
			run.state = model.RUN_FAILED
		}
		run.mu.Unlock()
		recorder.Close()

		// completed first, then active: a concurrent status query must find
		// the run in one of the two at every instant
		s.completed.Set(run.Id, run, cache.DefaultExpiration)
		s.mu.Lock()
		delete(s.active, run.Id)
		s.mu.Unlock()
		logger.Info("run finished", zap.String("runId", run.Id), zap.String("team", run.Team), zap.Bool("success", result.Success))
	}()
	return run
}

// watchState mirrors approval suspension into the run state so status
// queries can tell a parked run from a working one.
func (s *RunService) watchState(run *Run, events <-chan model.TraceEvent) {
	defer s.wg.Done()
	for event := range events {
		switch event.EventType {
		case model.APPROVAL_REQUESTED:
			run.setState(model.RUN_WAITING_APPROVAL)
		case model.APPROVAL_RECEIVED:
			run.setState(model.RUN_RUNNING)
		}
	}
}

func (s *RunService) newScheduler(recorder *trace.Recorder) *engine.Scheduler {
	router := llm.NewRouter(s.client, "")
	gateway := tool.NewGateway(s.registry)
	runtime := agent.NewRuntime(router, gateway, s.memStore, recorder)
	supervisor := engine.NewSupervisor(runtime, s.approvals, recorder)
	return engine.NewScheduler(supervisor, recorder)
}

func (s *RunService) get(runId string) (*Run, error) {
	s.mu.RLock()
	run, ok := s.active[runId]
	s.mu.RUnlock()
	if ok {
		return run, nil
	}
	if cached, found := s.completed.Get(runId); found {
		return cached.(*Run), nil
	}
	return nil, fmt.Errorf("run '%s' not found", runId)
}

type RunStatus struct {
	RunId            string                `json:"run_id"`
	Team             string                `json:"team"`
	State            model.RunState        `json:"state"`
	PendingApprovals []string              `json:"pending_approvals,omitempty"`
	Result           *model.WorkflowResult `json:"result,omitempty"`
}

func (s *RunService) Status(runId string) (*RunStatus, error) {
	run, err := s.get(runId)
	if err != nil {
		return nil, err
	}
	return &RunStatus{
		RunId:            run.Id,
		Team:             run.Team,
		State:            run.State(),
		PendingApprovals: s.approvals.PendingSteps(runId),
		Result:           run.Result(),
	}, nil
}

func (s *RunService) SubmitApproval(runId string, decision model.ApprovalDecision) error {
	if _, err := s.get(runId); err != nil {
		return err
	}
	return s.approvals.Submit(runId, decision)
}

func (s *RunService) Trace(runId string) ([]model.TraceEvent, error) {
	run, err := s.get(runId)
	if err != nil {
		return nil, err
	}
	run.recorder.Flush()
	return run.recorder.History(), nil
}

func (s *RunService) Cost(runId string) (*model.CostSummary, error) {
	run, err := s.get(runId)
	if err != nil {
		return nil, err
	}
	run.recorder.Flush()
	return run.recorder.Ledger().Summary(), nil
}

// Stop cancels every active run and waits for them to wind down.
func (s *RunService) Stop() {
	s.mu.Lock()
	for _, run := range s.active {
		run.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
