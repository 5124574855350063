package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerInstanceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getInstance",
		Method:      http.MethodGet,
		Path:        "/api/v1/instance",
		Summary:     "Get server instance",
		Description: "Returns daemon identity and advertisement settings",
		Tags:        []string{"Instance"},
	}, s.handleGetInstance)
}

// InstanceResponse contains daemon identity data in API responses.
type InstanceResponse struct {
	Name          string `json:"name" doc:"Server name"`
	Version       string `json:"version" doc:"API version"`
	Environment   string `json:"environment" doc:"Deployment environment"`
	EngineState   string `json:"engine_state" doc:"Current sync engine state"`
	AdvertiseMDNS bool   `json:"advertise_mdns" doc:"Whether the daemon advertises itself via mDNS"`
}

// InstanceOutput wraps the instance response for Huma.
type InstanceOutput struct {
	Body InstanceResponse
}

func (s *Server) handleGetInstance(_ context.Context, _ *struct{}) (*InstanceOutput, error) {
	resp := InstanceResponse{
		Version: Version,
	}

	if s.cfg != nil {
		resp.Name = s.cfg.Server.Name
		resp.Environment = s.cfg.App.Environment
		resp.AdvertiseMDNS = s.cfg.Server.AdvertiseMDNS
	}
	if s.engine != nil {
		resp.EngineState = s.engine.State().String()
	}

	return &InstanceOutput{Body: resp}, nil
}
