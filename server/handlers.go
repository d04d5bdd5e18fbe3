package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agents-forge/forge/config"
	"github.com/agents-forge/forge/graph"
	"github.com/agents-forge/forge/registry"
	"github.com/agents-forge/forge/step"
	"github.com/agents-forge/forge/store"
	"github.com/agents-forge/forge/stream"
)

// POST /api/v1/agents
func (s *Server) createAgent(c *gin.Context) {
	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	agent, err := s.registry.Create(c.Request.Context(), req.toConfig())
	if err != nil {
		var compileErr *graph.CompileError
		if errors.Is(err, config.ErrInvalidConfig) || errors.As(err, &compileErr) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		s.logger.Error("create agent: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create agent"})
		return
	}

	s.logger.Info("registered agent %s (%s)", agent.ID, agent.Config.AgentName)
	c.JSON(http.StatusCreated, AgentDetail{
		AgentSummary: summarize(agent),
		Config:       agent.Config,
	})
}

// GET /api/v1/agents
func (s *Server) listAgents(c *gin.Context) {
	agents := s.registry.List()
	items := make([]AgentSummary, 0, len(agents))
	for _, agent := range agents {
		items = append(items, summarize(agent))
	}
	c.JSON(http.StatusOK, items)
}

// GET /api/v1/agents/:id
func (s *Server) getAgent(c *gin.Context) {
	agent, err := s.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "agent not found"})
		return
	}
	c.JSON(http.StatusOK, AgentDetail{
		AgentSummary: summarize(agent),
		Config:       agent.Config,
	})
}

// DELETE /api/v1/agents/:id
func (s *Server) deleteAgent(c *gin.Context) {
	err := s.registry.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "agent not found"})
			return
		}
		s.logger.Error("delete agent: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to delete agent"})
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/v1/agents/:id/run
//
// Runs the agent to completion and returns the result in one response.
func (s *Server) runAgent(c *gin.Context) {
	agent, req, ok := s.bindRun(c)
	if !ok {
		return
	}

	result, _ := s.runner.Run(c.Request.Context(), agent.Graph, initialState(agent, req.Input), nil)
	s.retainState(c.Request.Context(), agent, result.FinalState, result.Err == nil)

	resp := RunResponse{
		ExecutionID: result.ExecutionID,
		Status:      string(result.Status),
		FinalState:  result.FinalState,
	}
	if result.Err != nil {
		resp.Error = result.Err.Message
		resp.ErrorKind = string(result.Err.Kind)
	} else {
		resp.Result = result.Output
		resp.ResultHTML = renderMarkdown(result.Output)
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/v1/agents/:id/run/stream
//
// Runs the agent, streaming progress as server-sent events. The execution
// is detached from the request context: a subscriber disconnect stops
// delivery but never aborts the run.
func (s *Server) streamAgent(c *gin.Context) {
	agent, req, ok := s.bindRun(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	sink := stream.NewSSESink(c.Writer)
	execCtx := context.WithoutCancel(c.Request.Context())

	result, _ := s.runner.Run(execCtx, agent.Graph, initialState(agent, req.Input), sink)
	s.retainState(execCtx, agent, result.FinalState, result.Err == nil)

	if sink.Dead() {
		s.logger.Warn("subscriber disconnected during execution %s", result.ExecutionID)
	}
}

// bindRun resolves the agent and decodes the run request, writing the
// error response itself when either fails.
func (s *Server) bindRun(c *gin.Context) (*registry.Agent, RunAgentRequest, bool) {
	var req RunAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return nil, req, false
	}
	agent, err := s.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "agent not found"})
		return nil, req, false
	}
	return agent, req, true
}

// initialState seeds a run with the agent's retained state plus the new
// user turn.
func initialState(agent *registry.Agent, input string) graph.State {
	initial := agent.State.Clone()
	messages := append(step.Messages(agent.State), step.Message{Role: "user", Content: input})
	initial[step.KeyInput] = input
	initial[step.KeyMessages] = messages
	return initial
}

// retainState saves the final state back to the agent so the conversation
// carries over to the next run. Failed runs keep the previous state.
func (s *Server) retainState(ctx context.Context, agent *registry.Agent, state graph.State, completed bool) {
	if !completed {
		return
	}
	if err := s.registry.UpdateState(ctx, agent.ID, state); err != nil {
		s.logger.Error("retain state for agent %s: %v", agent.ID, err)
	}
}
