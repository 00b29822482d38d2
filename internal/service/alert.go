package service

import (
	"context"
	"database/sql"
	"math"
	"strconv"
	"time"

	"coinpulse/conf"
	"coinpulse/internal/consts"
	"coinpulse/internal/dao"
	"coinpulse/internal/model"
	"coinpulse/internal/model/entity"
	"coinpulse/pkg/errors"
	"coinpulse/pkg/errors/ecode"
	"coinpulse/pkg/logger"
	"coinpulse/utils/uuid"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

var _ AlertService = (*alertService)(nil)

const exportVersion = "1"

type AlertService interface {
	AlertCreate(ctx context.Context, userID int64, req model.AlertCreateReq) (model.AlertRes, error)
	AlertUpdate(ctx context.Context, userID int64, id string, req model.AlertUpdateReq) (model.AlertRes, error)
	AlertDelete(ctx context.Context, userID int64, id string) (bool, error)
	AlertGet(ctx context.Context, userID int64, id string) (model.AlertRes, error)
	AlertList(ctx context.Context, userID int64, req model.AlertListReq) ([]model.AlertRes, error)
	AlertStats(ctx context.Context, userID int64) (model.AlertStatsRes, error)

	AlertHistoryList(ctx context.Context, userID int64, req model.AlertHistoryListReq) ([]model.AlertHistoryRes, error)
	AlertHistoryClear(ctx context.Context, userID int64) error

	AlertExport(ctx context.Context, userID int64) (model.AlertExportSnapshot, error)
	AlertImport(ctx context.Context, userID int64, req model.AlertImportReq) (model.AlertImportRes, error)
}

type alertService struct {
	ad   dao.AlertDAO
	iSrv *uuid.SnowNode
	cfg  conf.AlertConfig
}

func NewAlertService(ad dao.AlertDAO, cfg conf.AlertConfig) *alertService {
	return &alertService{
		ad:   ad,
		iSrv: uuid.NewNode(2),
		cfg:  cfg,
	}
}

// validateCreate 创建参数校验，返回ValidateErr
func validateCreate(req *model.AlertCreateReq) error {
	if req.CoinID == "" || req.CoinSymbol == "" {
		return errors.WithCode(ecode.ValidateErr, "coin_id和coin_symbol不能为空")
	}
	if !entity.ValidAlertType(req.AlertType) {
		return errors.WithCodef(ecode.ValidateErr, "不支持的提醒类型: %s", req.AlertType)
	}
	if math.IsNaN(req.TargetValue) || math.IsInf(req.TargetValue, 0) {
		return errors.WithCode(ecode.ValidateErr, "target_value必须是有限数值")
	}
	if err := validateDirection(req.AlertType, req.Direction); err != nil {
		return err
	}
	if req.Repeat == "" {
		req.Repeat = entity.AlertRepeatOnce
	}
	if !entity.ValidRepeat(req.Repeat) {
		return errors.WithCodef(ecode.ValidateErr, "不支持的重复策略: %s", req.Repeat)
	}
	for _, c := range req.Channels {
		switch c {
		case consts.ChannelInApp, consts.ChannelPush, consts.ChannelEmail, consts.ChannelSms:
		default:
			return errors.WithCodef(ecode.ValidateErr, "不支持的通知渠道: %s", c)
		}
	}
	return nil
}

// validateDirection 按提醒类型校验方向取值
func validateDirection(alertType, direction string) error {
	switch alertType {
	case entity.AlertTypePercentChange:
		if direction != entity.DirectionUp && direction != entity.DirectionDown {
			return errors.WithCode(ecode.ValidateErr, "PERCENT_CHANGE需要direction=up|down")
		}
	case entity.AlertTypeMarketCap:
		if direction != entity.DirectionAbove && direction != entity.DirectionBelow {
			return errors.WithCode(ecode.ValidateErr, "MARKET_CAP需要direction=above|below")
		}
	}
	return nil
}

func (s *alertService) AlertCreate(ctx context.Context, userID int64, req model.AlertCreateReq) (model.AlertRes, error) {
	var res model.AlertRes
	if err := validateCreate(&req); err != nil {
		return res, err
	}

	// 配额
	if s.cfg.MaxAlertsPerUser > 0 {
		count, err := s.ad.CountByUser(ctx, userID)
		if err != nil {
			return res, err
		}
		if count >= int64(s.cfg.MaxAlertsPerUser) {
			return res, errors.WithCodef(ecode.LimitExceededErr, "提醒数量已达上限%d", s.cfg.MaxAlertsPerUser)
		}
	}

	a := &entity.Alert{
		ID:          uuid.GenUUID(),
		UserID:      userID,
		CoinID:      req.CoinID,
		CoinSymbol:  req.CoinSymbol,
		AlertType:   req.AlertType,
		TargetValue: req.TargetValue,
		Direction:   req.Direction,
		Status:      entity.AlertStatusActive,
		Repeat:      req.Repeat,
	}
	if req.Deferred {
		a.Status = entity.AlertStatusPending
	}
	if req.AverageVolume > 0 {
		a.AverageVolume = sql.NullFloat64{Float64: req.AverageVolume, Valid: true}
	}
	if req.ExpiresAt > 0 {
		a.ExpiresAt = sql.NullTime{Time: time.Unix(req.ExpiresAt, 0), Valid: true}
	}
	channels := req.Channels
	if len(channels) == 0 {
		channels = []string{consts.ChannelInApp}
	}
	raw, _ := json.Marshal(channels)
	a.Channels = datatypes.JSON(raw)

	if err := s.ad.Create(ctx, a); err != nil {
		logger.Errorf("创建提醒失败: %v", err)
		return res, err
	}
	return alertToRes(a), nil
}

func (s *alertService) AlertUpdate(ctx context.Context, userID int64, id string, req model.AlertUpdateReq) (model.AlertRes, error) {
	var res model.AlertRes
	a, err := s.ad.GetByID(ctx, id)
	if err != nil {
		return res, err
	}
	if a == nil || a.UserID != userID {
		return res, errors.WithCode(ecode.NotFoundErr, "提醒不存在")
	}

	if req.TargetValue != nil {
		if math.IsNaN(*req.TargetValue) || math.IsInf(*req.TargetValue, 0) {
			return res, errors.WithCode(ecode.ValidateErr, "target_value必须是有限数值")
		}
		a.TargetValue = *req.TargetValue
	}
	if req.Direction != nil {
		if err := validateDirection(a.AlertType, *req.Direction); err != nil {
			return res, err
		}
		a.Direction = *req.Direction
	}
	if req.Repeat != nil {
		if !entity.ValidRepeat(*req.Repeat) {
			return res, errors.WithCodef(ecode.ValidateErr, "不支持的重复策略: %s", *req.Repeat)
		}
		a.Repeat = *req.Repeat
	}
	if req.Channels != nil {
		raw, _ := json.Marshal(*req.Channels)
		a.Channels = datatypes.JSON(raw)
	}
	if req.Enabled != nil {
		if *req.Enabled {
			a.Status = entity.AlertStatusActive
		} else {
			a.Status = entity.AlertStatusDisabled
		}
	}

	if err := s.ad.Save(ctx, a); err != nil {
		logger.Errorf("更新提醒%s失败: %v", id, err)
		return res, err
	}
	return alertToRes(a), nil
}

func (s *alertService) AlertDelete(ctx context.Context, userID int64, id string) (bool, error) {
	ok, err := s.ad.Delete(ctx, id, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errors.WithCode(ecode.NotFoundErr, "提醒不存在")
	}
	return true, nil
}

func (s *alertService) AlertGet(ctx context.Context, userID int64, id string) (model.AlertRes, error) {
	var res model.AlertRes
	a, err := s.ad.GetByID(ctx, id)
	if err != nil {
		return res, err
	}
	if a == nil || a.UserID != userID {
		return res, errors.WithCode(ecode.NotFoundErr, "提醒不存在")
	}
	return alertToRes(a), nil
}

func (s *alertService) AlertList(ctx context.Context, userID int64, req model.AlertListReq) ([]model.AlertRes, error) {
	list, err := s.ad.List(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	res := make([]model.AlertRes, 0, len(list))
	for i := range list {
		res = append(res, alertToRes(&list[i]))
	}
	return res, nil
}

func (s *alertService) AlertStats(ctx context.Context, userID int64) (model.AlertStatsRes, error) {
	return s.ad.Stats(ctx, userID)
}

func (s *alertService) AlertHistoryList(ctx context.Context, userID int64, req model.AlertHistoryListReq) ([]model.AlertHistoryRes, error) {
	if req.Limit <= 0 || req.Limit > s.cfg.MaxHistoryItems {
		req.Limit = s.cfg.MaxHistoryItems
	}
	items, err := s.ad.ListHistory(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	res := make([]model.AlertHistoryRes, 0, len(items))
	for _, h := range items {
		res = append(res, model.AlertHistoryRes{
			ID:          strconv.FormatInt(h.ID, 10),
			AlertID:     h.AlertID,
			CoinID:      h.CoinID,
			CoinSymbol:  h.CoinSymbol,
			AlertType:   h.AlertType,
			TargetValue: h.TargetValue,
			Direction:   h.Direction,
			TriggeredAt: h.TriggeredAt,
			Price:       h.Price,
			Volume:      h.Volume,
			MarketCap:   h.MarketCap,
		})
	}
	return res, nil
}

func (s *alertService) AlertHistoryClear(ctx context.Context, userID int64) error {
	return s.ad.ClearHistory(ctx, userID)
}

// AlertExport 导出快照，可直接再导入
func (s *alertService) AlertExport(ctx context.Context, userID int64) (model.AlertExportSnapshot, error) {
	list, err := s.ad.List(ctx, userID, model.AlertListReq{})
	if err != nil {
		return model.AlertExportSnapshot{}, err
	}
	snap := model.AlertExportSnapshot{
		Version:    exportVersion,
		ExportDate: time.Now().UnixMilli(),
		Alerts:     make([]model.AlertRes, 0, len(list)),
	}
	for i := range list {
		snap.Alerts = append(snap.Alerts, alertToRes(&list[i]))
	}
	return snap, nil
}

// AlertImport 导入快照。非法条目逐条收集，合法条目照常导入；
// merge=false时先清空现有提醒再导入
func (s *alertService) AlertImport(ctx context.Context, userID int64, req model.AlertImportReq) (model.AlertImportRes, error) {
	var res model.AlertImportRes
	if req.Snapshot.Version != exportVersion {
		return res, errors.WithCodef(ecode.ValidateErr, "不支持的快照版本: %s", req.Snapshot.Version)
	}

	if !req.Merge {
		if err := s.ad.DeleteAllByUser(ctx, userID); err != nil {
			return res, err
		}
	}

	for _, item := range req.Snapshot.Alerts {
		a, reason := importOne(userID, item)
		if a == nil {
			res.Invalid++
			res.InvalidAlerts = append(res.InvalidAlerts, reason)
			continue
		}
		// merge模式下同ID已存在则整体覆盖
		if req.Merge {
			if exist, err := s.ad.GetByID(ctx, a.ID); err == nil && exist != nil && exist.UserID == userID {
				if err := s.ad.Save(ctx, a); err != nil {
					logger.Errorf("导入提醒%s失败: %v", a.ID, err)
					res.Invalid++
					res.InvalidAlerts = append(res.InvalidAlerts, a.ID)
					continue
				}
				res.Imported++
				continue
			}
		}
		if err := s.ad.Create(ctx, a); err != nil {
			logger.Errorf("导入提醒%s失败: %v", a.ID, err)
			res.Invalid++
			res.InvalidAlerts = append(res.InvalidAlerts, a.ID)
			continue
		}
		res.Imported++
	}
	return res, nil
}

// importOne 单条导入校验，返回nil和失败原因表示条目非法
func importOne(userID int64, item model.AlertRes) (*entity.Alert, string) {
	cr := model.AlertCreateReq{
		CoinID:      item.CoinID,
		CoinSymbol:  item.CoinSymbol,
		AlertType:   item.AlertType,
		TargetValue: item.TargetValue,
		Direction:   item.Direction,
		Repeat:      item.Repeat,
		Channels:    item.Channels,
	}
	if err := validateCreate(&cr); err != nil {
		_, msg := errors.DecodeErr(err)
		if item.ID != "" {
			return nil, item.ID + ": " + msg
		}
		return nil, msg
	}

	a := &entity.Alert{
		ID:          item.ID,
		UserID:      userID,
		CoinID:      cr.CoinID,
		CoinSymbol:  cr.CoinSymbol,
		AlertType:   cr.AlertType,
		TargetValue: cr.TargetValue,
		Direction:   cr.Direction,
		Status:      item.Status,
		Repeat:      cr.Repeat,
	}
	if a.ID == "" {
		a.ID = uuid.GenUUID()
	}
	switch a.Status {
	case entity.AlertStatusActive, entity.AlertStatusPending, entity.AlertStatusTriggered,
		entity.AlertStatusExpired, entity.AlertStatusDisabled:
	default:
		a.Status = entity.AlertStatusActive
	}
	if item.AverageVolume > 0 {
		a.AverageVolume = sql.NullFloat64{Float64: item.AverageVolume, Valid: true}
	}
	if item.TriggeredAt > 0 {
		a.TriggeredAt = sql.NullTime{Time: time.UnixMilli(item.TriggeredAt), Valid: true}
	}
	if item.TriggeredData != nil {
		raw, _ := json.Marshal(item.TriggeredData)
		a.TriggeredData = datatypes.JSON(raw)
	}
	raw, _ := json.Marshal(cr.Channels)
	a.Channels = datatypes.JSON(raw)
	return a, ""
}

// alertToRes 实体转响应结构
func alertToRes(a *entity.Alert) model.AlertRes {
	res := model.AlertRes{
		ID:          a.ID,
		CoinID:      a.CoinID,
		CoinSymbol:  a.CoinSymbol,
		AlertType:   a.AlertType,
		TargetValue: a.TargetValue,
		Direction:   a.Direction,
		Status:      a.Status,
		Repeat:      a.Repeat,
		CreatedAt:   a.CreatedAt.UnixMilli(),
		UpdatedAt:   a.UpdatedAt.UnixMilli(),
	}
	if a.AverageVolume.Valid {
		res.AverageVolume = a.AverageVolume.Float64
	}
	if a.TriggeredAt.Valid {
		res.TriggeredAt = a.TriggeredAt.Time.UnixMilli()
	}
	if len(a.TriggeredData) > 0 {
		var td model.AlertTriggeredData
		if err := json.Unmarshal(a.TriggeredData, &td); err == nil {
			res.TriggeredData = &td
		}
	}
	if len(a.Channels) > 0 {
		_ = json.Unmarshal(a.Channels, &res.Channels)
	}
	return res
}
