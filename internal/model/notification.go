package model

// NotificationListReq 查询通知列表
type NotificationListReq struct {
	Status string `form:"status"` // 过滤状态，空为全部
	Type   string `form:"type"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// NotificationRes 通知的响应结构
type NotificationRes struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Actions     []NotificationAction   `json:"actions,omitempty"`
	Status      string                 `json:"status"`
	Priority    string                 `json:"priority"`
	Timestamp   int64                  `json:"timestamp"`
	Group       *NotificationGroup     `json:"group,omitempty"` // 合并信息，未合并为空
}

type NotificationAction struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

type NotificationGroup struct {
	Count int                     `json:"count"`
	Items []NotificationGroupItem `json:"items"`
}

type NotificationGroupItem struct {
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"`
}

// NotificationListRes 通知列表及未读数
type NotificationListRes struct {
	List        []NotificationRes `json:"list"`
	UnreadCount int               `json:"unread_count"`
}

// PreferencesUpdateReq 更新通知偏好，指针为空表示不改
type PreferencesUpdateReq struct {
	EnabledChannels *[]string `json:"enabled_channels,omitempty"`
	EnabledTypes    *[]string `json:"enabled_types,omitempty"`
	GroupSimilar    *bool     `json:"group_similar,omitempty"`
	EmailFrequency  *string   `json:"email_frequency,omitempty"` // immediate/digest/off
	Email           *string   `json:"email,omitempty"`
	PhoneNumber     *string   `json:"phone_number,omitempty"`
}

// PreferencesRes 通知偏好响应
type PreferencesRes struct {
	EnabledChannels []string `json:"enabled_channels"`
	EnabledTypes    []string `json:"enabled_types"`
	GroupSimilar    bool     `json:"group_similar"`
	EmailFrequency  string   `json:"email_frequency"`
	Email           string   `json:"email,omitempty"`
	PhoneNumber     string   `json:"phone_number,omitempty"`
}
