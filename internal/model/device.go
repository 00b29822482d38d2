package model

// DeviceTokenReportReq 客户端上报APNs设备token
type DeviceTokenReportReq struct {
	DeviceToken string `json:"device_token" binding:"required"`
	DeviceUUID  string `json:"device_uuid" binding:"required"`
	Platform    string `json:"platform" binding:"required"`
}
