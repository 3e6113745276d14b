package a2a

// MessageSendConfiguration carries client preferences for a message/send or
// message/stream call.
type MessageSendConfiguration struct {
	AcceptedOutputModes    []string                `json:"acceptedOutputModes,omitempty"`
	HistoryLength          *int                    `json:"historyLength,omitempty"`
	PushNotificationConfig *PushNotificationConfig `json:"pushNotificationConfig,omitempty"`
	Blocking               *bool                   `json:"blocking,omitempty"`
}

// IsBlocking reports the effective blocking mode; the default is blocking.
func (c *MessageSendConfiguration) IsBlocking() bool {
	if c == nil || c.Blocking == nil {
		return true
	}
	return *c.Blocking
}

// MessageSendParams are the parameters of message/send and message/stream.
type MessageSendParams struct {
	Message       *Message                  `json:"message"`
	Configuration *MessageSendConfiguration `json:"configuration,omitempty"`
	Metadata      map[string]interface{}    `json:"metadata,omitempty"`
}

// TaskQueryParams are the parameters of tasks/get.
type TaskQueryParams struct {
	ID            string                 `json:"id"`
	HistoryLength *int                   `json:"historyLength,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// TaskIDParams identify a task for tasks/cancel and tasks/resubscribe.
type TaskIDParams struct {
	ID       string                 `json:"id"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PushNotificationAuthenticationInfo describes how the runtime authenticates
// against a push notification endpoint.
type PushNotificationAuthenticationInfo struct {
	Schemes     []string `json:"schemes"`
	Credentials string   `json:"credentials,omitempty"`
}

// PushNotificationConfig is a per-task webhook registration. A task may hold
// several configs, distinguished by ID.
type PushNotificationConfig struct {
	ID             string                              `json:"id,omitempty"`
	URL            string                              `json:"url"`
	Token          string                              `json:"token,omitempty"`
	Authentication *PushNotificationAuthenticationInfo `json:"authentication,omitempty"`
}

// TaskPushNotificationConfig binds a push config to a task; it is both the
// params and the result of tasks/pushNotificationConfig/set.
type TaskPushNotificationConfig struct {
	TaskID                 string                 `json:"taskId"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}

// GetTaskPushNotificationConfigParams are the parameters of
// tasks/pushNotificationConfig/get.
type GetTaskPushNotificationConfigParams struct {
	ID                       string                 `json:"id"`
	PushNotificationConfigID string                 `json:"pushNotificationConfigId,omitempty"`
	Metadata                 map[string]interface{} `json:"metadata,omitempty"`
}

// DeleteTaskPushNotificationConfigParams are the parameters of
// tasks/pushNotificationConfig/delete.
type DeleteTaskPushNotificationConfigParams struct {
	ID                       string                 `json:"id"`
	PushNotificationConfigID string                 `json:"pushNotificationConfigId"`
	Metadata                 map[string]interface{} `json:"metadata,omitempty"`
}
