package query

import (
	"context"

	"coinpulse/internal/dao"
	"coinpulse/internal/model/entity"

	"gorm.io/gorm"
)

var _ dao.DeviceDao = (*deviceDao)(nil)

type deviceDao struct {
	ds *gorm.DB
}

func NewDeviceDao(ds *gorm.DB) *deviceDao {
	return &deviceDao{
		ds: ds,
	}
}

func (u *deviceDao) UserDeviceTokenListGetByUserId(ctx context.Context, userId int64) ([]entity.DeviceToken, error) {
	var tokens []entity.DeviceToken
	err := u.ds.WithContext(ctx).Where("user_id = ?", userId).Find(&tokens).Error
	return tokens, err
}

func (u *deviceDao) UserDeviceTokenGetByDeviceUUID(ctx context.Context, deviceUUID string) (entity.DeviceToken, error) {
	var token entity.DeviceToken
	err := u.ds.WithContext(ctx).Where("device_uuid = ?", deviceUUID).First(&token).Error
	return token, err
}

func (u *deviceDao) UserDeviceTokenCreateNew(ctx context.Context, deviceToken entity.DeviceToken) error {
	err := u.ds.WithContext(ctx).Create(&deviceToken).Error
	return err
}

func (u *deviceDao) UserDeviceTokenUpdateByDeviceUUID(ctx context.Context, deviceUUID, deviceToken string) error {
	err := u.ds.WithContext(ctx).
		Model(&entity.DeviceToken{}).
		Where("device_uuid = ?", deviceUUID).
		UpdateColumn("device_token", deviceToken).
		Error
	return err
}

func (u *deviceDao) UserDeviceTokenDelete(ctx context.Context, userId int64, deviceUUID string) error {
	return u.ds.WithContext(ctx).
		Where("user_id = ? AND device_uuid = ?", userId, deviceUUID).
		Delete(&entity.DeviceToken{}).Error
}
