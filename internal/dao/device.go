package dao

import (
	"context"

	"coinpulse/internal/model/entity"
)

type DeviceDao interface {
	// 根据userId获取所有device token
	UserDeviceTokenListGetByUserId(ctx context.Context, userId int64) ([]entity.DeviceToken, error)
	UserDeviceTokenGetByDeviceUUID(ctx context.Context, deviceKey string) (entity.DeviceToken, error)
	// 创建DeviceToken
	UserDeviceTokenCreateNew(ctx context.Context, deviceToken entity.DeviceToken) error
	// 根据deviceUUID更新deviceToken
	UserDeviceTokenUpdateByDeviceUUID(ctx context.Context, deviceUUID, deviceToken string) error
	// 删除用户某个设备的token（退出登录或推送反馈失效时调用）
	UserDeviceTokenDelete(ctx context.Context, userId int64, deviceUUID string) error
}
