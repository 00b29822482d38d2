package ecode

// 错误码定义，0表示成功，其余按业务域分段

const (
	Success = 0
	Unknown = 10001
	// ValidateErr 请求参数校验失败（含非法的提醒定义）
	ValidateErr = 10002
	// RequireAuthErr token鉴权失败
	RequireAuthErr = 10003

	// NotFoundErr 引用的资源不存在（提醒、通知等）
	NotFoundErr = 20001
	// LimitExceededErr 超出配额（如单用户提醒上限）
	LimitExceededErr = 20002

	// NetworkErr 上游网络错误，属于临时错误，可重试
	NetworkErr = 30001
	// PermissionDeniedErr 推送权限缺失，仅降级对应通道
	PermissionDeniedErr = 30002
)

var messages = map[int]string{
	Success:             "success",
	Unknown:             "unknown error",
	ValidateErr:         "invalid request parameter",
	RequireAuthErr:      "authentication required",
	NotFoundErr:         "resource not found",
	LimitExceededErr:    "quota exceeded",
	NetworkErr:          "upstream network error",
	PermissionDeniedErr: "permission denied",
}

// Text 返回错误码的默认描述
func Text(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[Unknown]
}
