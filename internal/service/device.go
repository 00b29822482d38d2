package service

import (
	"context"

	"coinpulse/internal/consts"
	"coinpulse/internal/dao"
	"coinpulse/internal/model"
	"coinpulse/internal/model/entity"
	"coinpulse/pkg/cache"
	"coinpulse/pkg/logger"
	"coinpulse/utils/uuid"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var _ DeviceService = (*deviceService)(nil)

type DeviceService interface {
	// 上报device token，不存在创建，存在则更新
	UserDeviceTokenUpdate(ctx context.Context, userID int64, req model.DeviceTokenReportReq) error
	UserGetDeviceTokenList(ctx context.Context, userID int64) ([]entity.DeviceToken, error)
	UserDeviceTokenRemove(ctx context.Context, userID int64, deviceUUID string) error
}

type deviceService struct {
	dd   dao.DeviceDao
	iSrv *uuid.SnowNode
	rc   *redis.Client
}

func NewDeviceService(dd dao.DeviceDao) *deviceService {
	return &deviceService{
		dd:   dd,
		iSrv: uuid.NewNode(3),
		rc:   cache.GetRedisClient(),
	}
}

func (u *deviceService) UserDeviceTokenUpdate(ctx context.Context, userID int64, req model.DeviceTokenReportReq) error {
	_, err := u.dd.UserDeviceTokenGetByDeviceUUID(ctx, req.DeviceUUID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Debugf("查询device token记录出错:%v", err.Error())
			return err
		}
		// 不存在记录，创建device token
		deviceToken := entity.DeviceToken{
			Id:          u.iSrv.GenSnowID(),
			UserId:      userID,
			DeviceToken: req.DeviceToken,
			DeviceUUID:  req.DeviceUUID,
			Platform:    req.Platform,
		}
		if err := u.dd.UserDeviceTokenCreateNew(ctx, deviceToken); err != nil {
			return err
		}
	} else {
		// 已存在，则更新device token
		if err := u.dd.UserDeviceTokenUpdateByDeviceUUID(ctx, req.DeviceUUID, req.DeviceToken); err != nil {
			logger.Errorf("更新device token 失败：%v", err.Error())
			return err
		}
	}

	// 失效设备信息缓存
	if u.rc != nil {
		u.rc.Del(ctx, consts.UserDeviceInfoPrefix+req.DeviceUUID)
	}
	return nil
}

func (u *deviceService) UserGetDeviceTokenList(ctx context.Context, userID int64) ([]entity.DeviceToken, error) {
	tokens, err := u.dd.UserDeviceTokenListGetByUserId(ctx, userID)
	if err != nil {
		logger.Errorf("获取用户%d的device token失败：%v", userID, err.Error())
		return nil, err
	}
	return tokens, nil
}

func (u *deviceService) UserDeviceTokenRemove(ctx context.Context, userID int64, deviceUUID string) error {
	return u.dd.UserDeviceTokenDelete(ctx, userID, deviceUUID)
}
