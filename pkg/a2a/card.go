package a2a

// AgentCardPath is the well-known discovery path served by the HTTP
// transport.
const AgentCardPath = "/.well-known/agent-card.json"

// AgentCapabilities advertises optional protocol features.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory,omitempty"`
}

// AgentSkill describes one capability of the agent for discovery.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
}

// AgentCard is the discovery document returned outside the JSON-RPC surface.
type AgentCard struct {
	Name               string                            `json:"name"`
	Description        string                            `json:"description,omitempty"`
	URL                string                            `json:"url"`
	Version            string                            `json:"version"`
	ProtocolVersion    string                            `json:"protocolVersion,omitempty"`
	PreferredTransport string                            `json:"preferredTransport,omitempty"`
	Capabilities       AgentCapabilities                 `json:"capabilities"`
	DefaultInputModes  []string                          `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string                          `json:"defaultOutputModes,omitempty"`
	Skills             []AgentSkill                      `json:"skills,omitempty"`
	SecuritySchemes    map[string]map[string]interface{} `json:"securitySchemes,omitempty"`
}
