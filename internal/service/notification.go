package service

import (
	"context"

	"coinpulse/conf"
	"coinpulse/internal/consts"
	"coinpulse/internal/dao"
	"coinpulse/internal/model"
	"coinpulse/internal/model/entity"
	"coinpulse/internal/notify"
	"coinpulse/pkg/errors"
	"coinpulse/pkg/errors/ecode"
	"coinpulse/pkg/mail"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

var _ NotificationService = (*notificationService)(nil)

type NotificationService interface {
	NotificationList(ctx context.Context, userID int64, req model.NotificationListReq) (model.NotificationListRes, error)
	MarkRead(ctx context.Context, userID int64, id string) error
	MarkUnread(ctx context.Context, userID int64, id string) error
	MarkAllRead(ctx context.Context, userID int64) error
	Dismiss(ctx context.Context, userID int64, id string) error
	NotificationDelete(ctx context.Context, userID int64, id string) error
	UnreadCount(ctx context.Context, userID int64) (int64, error)

	PreferencesGet(ctx context.Context, userID int64) (model.PreferencesRes, error)
	PreferencesUpdate(ctx context.Context, userID int64, req model.PreferencesUpdateReq) (model.PreferencesRes, error)
}

type notificationService struct {
	nd       dao.NotificationDAO
	verifier *mail.Verifier
	precheck bool
}

func NewNotificationService(nd dao.NotificationDAO) *notificationService {
	s := &notificationService{nd: nd, precheck: conf.AppConfig.Email.PreCheck}
	if s.precheck {
		s.verifier = mail.NewVerifier()
	}
	return s
}

func (s *notificationService) NotificationList(ctx context.Context, userID int64, req model.NotificationListReq) (model.NotificationListRes, error) {
	var res model.NotificationListRes
	list, err := s.nd.List(ctx, userID, req)
	if err != nil {
		return res, err
	}
	res.List = make([]model.NotificationRes, 0, len(list))
	for i := range list {
		res.List = append(res.List, notify.ToNotificationRes(&list[i]))
	}
	unread, err := s.nd.CountUnread(ctx, userID)
	if err != nil {
		return res, err
	}
	res.UnreadCount = int(unread)
	return res, nil
}

func (s *notificationService) setStatus(ctx context.Context, userID int64, id, status string) error {
	ok, err := s.nd.UpdateStatus(ctx, id, userID, status)
	if err != nil {
		return err
	}
	if !ok {
		return errors.WithCode(ecode.NotFoundErr, "通知不存在")
	}
	return nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID int64, id string) error {
	return s.setStatus(ctx, userID, id, entity.NotificationStatusRead)
}

func (s *notificationService) MarkUnread(ctx context.Context, userID int64, id string) error {
	return s.setStatus(ctx, userID, id, entity.NotificationStatusUnread)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID int64) error {
	return s.nd.MarkAllRead(ctx, userID)
}

func (s *notificationService) Dismiss(ctx context.Context, userID int64, id string) error {
	return s.setStatus(ctx, userID, id, entity.NotificationStatusDismissed)
}

func (s *notificationService) NotificationDelete(ctx context.Context, userID int64, id string) error {
	ok, err := s.nd.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.WithCode(ecode.NotFoundErr, "通知不存在")
	}
	return nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.nd.CountUnread(ctx, userID)
}

// PreferencesGet 没有记录时返回默认偏好
func (s *notificationService) PreferencesGet(ctx context.Context, userID int64) (model.PreferencesRes, error) {
	p, err := s.nd.GetPreferences(ctx, userID)
	if err != nil {
		return model.PreferencesRes{}, err
	}
	if p == nil {
		return model.PreferencesRes{
			EnabledChannels: []string{consts.ChannelInApp},
			EnabledTypes:    []string{},
			GroupSimilar:    true,
			EmailFrequency:  entity.EmailFrequencyImmediate,
		}, nil
	}
	return prefsToRes(p), nil
}

func (s *notificationService) PreferencesUpdate(ctx context.Context, userID int64, req model.PreferencesUpdateReq) (model.PreferencesRes, error) {
	var res model.PreferencesRes
	p, err := s.nd.GetPreferences(ctx, userID)
	if err != nil {
		return res, err
	}
	if p == nil {
		p = &entity.NotificationPreferences{
			UserID:         userID,
			GroupSimilar:   true,
			EmailFrequency: entity.EmailFrequencyImmediate,
		}
	}

	if req.EnabledChannels != nil {
		for _, c := range *req.EnabledChannels {
			switch c {
			case consts.ChannelInApp, consts.ChannelPush, consts.ChannelEmail, consts.ChannelSms:
			default:
				return res, errors.WithCodef(ecode.ValidateErr, "不支持的通知渠道: %s", c)
			}
		}
		raw, _ := json.Marshal(*req.EnabledChannels)
		p.EnabledChannels = datatypes.JSON(raw)
	}
	if req.EnabledTypes != nil {
		raw, _ := json.Marshal(*req.EnabledTypes)
		p.EnabledTypes = datatypes.JSON(raw)
	}
	if req.GroupSimilar != nil {
		p.GroupSimilar = *req.GroupSimilar
	}
	if req.EmailFrequency != nil {
		switch *req.EmailFrequency {
		case entity.EmailFrequencyImmediate, entity.EmailFrequencyDigest, entity.EmailFrequencyOff:
		default:
			return res, errors.WithCodef(ecode.ValidateErr, "不支持的邮件频率: %s", *req.EmailFrequency)
		}
		p.EmailFrequency = *req.EmailFrequency
	}
	if req.Email != nil {
		if *req.Email != "" && s.precheck {
			if err := s.verifier.VerifierEmail(*req.Email); err != nil {
				return res, errors.Wrap(err, ecode.ValidateErr, "邮箱校验失败")
			}
		}
		p.Email = *req.Email
	}
	if req.PhoneNumber != nil {
		p.PhoneNumber = *req.PhoneNumber
	}

	if err := s.nd.SavePreferences(ctx, p); err != nil {
		return res, err
	}
	return prefsToRes(p), nil
}

func prefsToRes(p *entity.NotificationPreferences) model.PreferencesRes {
	res := model.PreferencesRes{
		GroupSimilar:   p.GroupSimilar,
		EmailFrequency: p.EmailFrequency,
		Email:          p.Email,
		PhoneNumber:    p.PhoneNumber,
	}
	if len(p.EnabledChannels) > 0 {
		_ = json.Unmarshal(p.EnabledChannels, &res.EnabledChannels)
	}
	if len(res.EnabledChannels) == 0 {
		res.EnabledChannels = []string{consts.ChannelInApp}
	}
	if len(p.EnabledTypes) > 0 {
		_ = json.Unmarshal(p.EnabledTypes, &res.EnabledTypes)
	}
	if res.EnabledTypes == nil {
		res.EnabledTypes = []string{}
	}
	return res
}
