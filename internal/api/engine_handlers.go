package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mirrordapp/mirrord-server/internal/engine"
)

func (s *Server) registerEngineRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getEngineStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/engine",
		Summary:     "Get engine status",
		Description: "Returns the sync engine state, active configuration, and counters",
		Tags:        []string{"Engine"},
	}, s.handleGetEngineStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "startEngine",
		Method:      http.MethodPost,
		Path:        "/api/v1/engine/start",
		Summary:     "Start the sync engine",
		Description: "Validates the supplied configuration and starts a sync run. Fails with 409 if a run is already active.",
		Tags:        []string{"Engine"},
	}, s.handleStartEngine)

	huma.Register(s.api, huma.Operation{
		OperationID: "stopEngine",
		Method:      http.MethodPost,
		Path:        "/api/v1/engine/stop",
		Summary:     "Stop the sync engine",
		Description: "Stops the active sync run after the in-flight operation completes. Stopping an idle engine is a no-op.",
		Tags:        []string{"Engine"},
	}, s.handleStopEngine)
}

// === DTOs ===

// StartEngineRequest is the request body for starting a sync run.
type StartEngineRequest struct {
	SourceDir           string   `json:"source_dir" validate:"required" doc:"Directory tree to watch"`
	TargetDir           string   `json:"target_dir" validate:"required" doc:"Directory tree to mirror into"`
	Extensions          []string `json:"extensions" validate:"required,min=1,dive,required" doc:"File suffixes to mirror (e.g. .gd, .tscn)"`
	AllowDeletion       bool     `json:"allow_deletion,omitempty" doc:"Propagate source deletions to the target"`
	IncludeHidden       bool     `json:"include_hidden,omitempty" doc:"Mirror dotfiles as well"`
	UsePolling          bool     `json:"use_polling,omitempty" doc:"Use the polling watch strategy instead of native notifications"`
	SyncImportArtifacts bool     `json:"sync_import_artifacts,omitempty" doc:"Also mirror reserved .import artifact files"`
}

// StartEngineInput wraps the start request for Huma.
type StartEngineInput struct {
	Body StartEngineRequest
}

// EngineStatusOutput wraps the engine status for Huma.
type EngineStatusOutput struct {
	Body engine.Status
}

// === Handlers ===

func (s *Server) handleGetEngineStatus(_ context.Context, _ *struct{}) (*EngineStatusOutput, error) {
	return &EngineStatusOutput{Body: s.engine.Status()}, nil
}

func (s *Server) handleStartEngine(_ context.Context, input *StartEngineInput) (*EngineStatusOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	cfg := engine.Config{
		SourceDir:           input.Body.SourceDir,
		TargetDir:           input.Body.TargetDir,
		Extensions:          input.Body.Extensions,
		AllowDeletion:       input.Body.AllowDeletion,
		IncludeHidden:       input.Body.IncludeHidden,
		UsePolling:          input.Body.UsePolling,
		SyncImportArtifacts: input.Body.SyncImportArtifacts,
	}

	// Validate up front so the caller gets the precise failure. A Start
	// refusal afterwards can only mean a run is already active.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !s.engine.Start(cfg) {
		return nil, huma.Error409Conflict("sync engine is already running")
	}

	s.logger.Info("sync engine start requested",
		"source", cfg.SourceDir,
		"target", cfg.TargetDir,
	)

	return &EngineStatusOutput{Body: s.engine.Status()}, nil
}

func (s *Server) handleStopEngine(_ context.Context, _ *struct{}) (*EngineStatusOutput, error) {
	s.engine.Stop()
	return &EngineStatusOutput{Body: s.engine.Status()}, nil
}
