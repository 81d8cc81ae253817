package handlers

import (
	"net/http"

	"github.com/BaSui01/stemchat/agent"
)

// AgentLister exposes the registered agents in routing order.
type AgentLister interface {
	Agents() []agent.Descriptor
}

// AgentHandler 处理 GET /api/agents
type AgentHandler struct {
	agents AgentLister
}

// NewAgentHandler 创建 Agent 列表处理器
func NewAgentHandler(agents AgentLister) *AgentHandler {
	return &AgentHandler{agents: agents}
}

// HandleListAgents 返回路由器中已注册的 Agent
// @Summary Agent 列表
// @Tags Agent
// @Produce json
// @Success 200 {object} Response{data=[]agent.Descriptor}
// @Router /api/agents [get]
func (h *AgentHandler) HandleListAgents(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, h.agents.Agents())
}
