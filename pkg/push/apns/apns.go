package apns

import (
	"fmt"

	"coinpulse/conf"
	"coinpulse/pkg/logger"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

type PushMessage struct {
	Category string `form:"category,omitempty" json:"category,omitempty"`
	Title    string `form:"title,omitempty" json:"title,omitempty"`
	Body     string `form:"body,omitempty" json:"body,omitempty"`
	// ios notification sound(system sound please refer to http://iphonedevwiki.net/index.php/AudioServices)
	Sound     string                 `form:"sound,omitempty" json:"sound,omitempty"`
	ExtParams map[string]interface{} `form:"ext_params,omitempty" json:"ext_params,omitempty"`
}

type PushResponse struct {
	ApnsID string
	Reason string
}

// 基于token(p8私钥)鉴权的APNs客户端
type Apns struct {
	cfg    *conf.Apns
	client *apns2.Client
}

// NewTokenApns 创建APNs推送客户端。
// p8私钥文件在apple dev官网 - 用户与访问权限中创建
func NewTokenApns() *Apns {
	cfg := &conf.AppConfig.Apple.Apns
	if cfg.AuthKeyFile == "" {
		logger.Fatalf("Apns is not config")
	}
	authKey, err := token.AuthKeyFromFile(cfg.AuthKeyFile)
	if err != nil {
		logger.Fatalf("failed to create APNS auth key: %v", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.IsProd {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &Apns{cfg, client}
}

func (a *Apns) Push(msg *PushMessage, deviceToken string) (res *PushResponse, err error) {
	if msg == nil {
		return nil, fmt.Errorf("APNS push failed :%s", "无效的message")
	}
	pl := payload.NewPayload().AlertTitle(msg.Title).AlertBody(msg.Body).Sound(msg.Sound).Category(msg.Category)
	group, exist := msg.ExtParams["group"]
	if exist {
		pl = pl.ThreadID(group.(string))
	}
	for k, v := range msg.ExtParams {
		pl = pl.Custom(k, v)
	}

	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       a.cfg.Topic,
		Payload:     pl,
	}

	resp, err := a.client.Push(notification)
	if err != nil {
		return nil, err
	}
	if !resp.Sent() {
		return &PushResponse{ApnsID: resp.ApnsID, Reason: resp.Reason},
			fmt.Errorf("APNS push not sent: %s", resp.Reason)
	}
	return &PushResponse{ApnsID: resp.ApnsID}, nil
}
