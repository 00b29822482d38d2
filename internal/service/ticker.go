package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"coinpulse/internal/event"
	"coinpulse/internal/market"
	"coinpulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// 实时行情推送：订阅OKX的tickers频道，把每次价格更新转成快照
// 发到事件总线，提醒引擎的快速通道据此即时评估，不用等周期检查。
// 连接断开/恢复同时作为离线/在线信号发布。

type TickerFeed struct {
	sync.RWMutex
	bus         *event.Bus
	conn        *websocket.Conn
	subscribed  map[string]struct{}
	url         string
	closeCh     chan struct{}
	lastRequest time.Time
}

func NewTickerFeed(bus *event.Bus) *TickerFeed {
	return &TickerFeed{
		bus:        bus,
		subscribed: make(map[string]struct{}),
		url:        "wss://ws.okx.com:8443/ws/v5/public",
		closeCh:    make(chan struct{}),
	}
}

// Start 建立连接并订阅初始币种，连接成功即广播在线事件
func (s *TickerFeed) Start(symbols []string) error {
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		return err
	}
	s.Lock()
	s.conn = conn
	s.Unlock()

	s.bus.PublishConnectivity(event.Connectivity{Online: true})

	if err := s.SubscribeSymbols(context.Background(), symbols); err != nil {
		logger.Warnf("TickerFeed 初始订阅失败: %v", err)
	}
	go s.readLoop()
	return nil
}

func (s *TickerFeed) readLoop() {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			logger.Warnf("TickerFeed read error: %v", err)
			// 断线视为离线，提醒引擎暂停周期检查
			s.bus.PublishConnectivity(event.Connectivity{Online: false})
			s.reconnect()
			return
		}

		s.handleMessage(msg)
	}
}

func (s *TickerFeed) sendMessage(message interface{}) error {
	// Ensure at least 50ms between requests
	timeSinceLastRequest := time.Since(s.lastRequest)
	if timeSinceLastRequest < 50*time.Millisecond {
		time.Sleep(50*time.Millisecond - timeSinceLastRequest)
	}
	s.lastRequest = time.Now()

	return s.conn.WriteJSON(message)
}

func (s *TickerFeed) reconnect() {

	// 关闭旧连接
	_ = s.conn.Close()

	// 循环尝试重连
	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
		if err != nil {
			logger.Warnf("TickerFeed reconnect failed, retrying in 2s: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}

		s.Lock()
		s.conn = conn
		s.Unlock()

		logger.Infof("TickerFeed reconnected to OKX WebSocket")
		s.bus.PublishConnectivity(event.Connectivity{Online: true})

		// 重新订阅之前的币种
		s.subscribeAll()
		go s.readLoop()
		break
	}
}

func (s *TickerFeed) subscribeAll() {
	s.RLock()
	symbols := make([]string, 0, len(s.subscribed))
	for sym := range s.subscribed {
		symbols = append(symbols, sym)
	}
	s.RUnlock()
	if len(symbols) > 0 {
		s.Lock()
		for _, sym := range symbols {
			delete(s.subscribed, sym)
		}
		s.Unlock()
		_ = s.SubscribeSymbols(context.Background(), symbols)
	}
}

// handleMessage 处理 OKX 推送消息
func (s *TickerFeed) handleMessage(msg []byte) {
	var raw map[string]interface{}
	if err := json.Unmarshal(msg, &raw); err != nil {
		logger.Warnf("TickerFeed json unmarshal error: %v", err)
		return
	}

	if evt, ok := raw["event"].(string); ok {
		switch evt {
		case "ping":
			// OKX 发了心跳请求，回 pong
			pong := map[string]string{"event": "pong"}
			data, _ := json.Marshal(pong)
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Warnf("write pong error: %v", err)
			}
			return

		case "error":
			logger.Warnf("Error from OKX: %v", raw)
			return
		}
	}

	arg, ok := raw["arg"].(map[string]interface{})
	if !ok {
		return
	}

	channel, ok := arg["channel"].(string)
	if !ok || channel != "tickers" {
		return
	}

	dataArr, ok := raw["data"].([]interface{})
	if !ok {
		return
	}

	for _, d := range dataArr {
		item, ok := d.(map[string]interface{})
		if !ok {
			continue
		}
		instId, _ := item["instId"].(string)
		if instId == "" {
			continue
		}

		lastPrice := parseFloat(item["last"])      // 最新成交价格
		volCcy24h := parseFloat(item["volCcy24h"]) // 24小时成交量（以计价货币计）
		open24h := parseFloat(item["open24h"])     // 24小时开盘价

		change24h := 0.0
		if open24h != 0 {
			change24h = (lastPrice - open24h) / open24h * 100
		}

		snap := &market.Snapshot{
			CoinID:    instId,
			Symbol:    instId,
			Price:     lastPrice,
			Volume:    volCcy24h,
			Change24h: change24h,
			HasPrice:  lastPrice != 0,
			HasVolume: volCcy24h != 0,
			HasChange: open24h != 0,
			// OKX tickers频道没有市值
			HasMarketCap: false,
			FetchedAt:    time.Now(),
		}
		s.bus.PublishTick(market.Tick{CoinID: instId, Snapshot: snap})
	}
}

// parseFloat 辅助解析 float
func parseFloat(v interface{}) float64 {
	switch t := v.(type) {
	case string:
		var f float64
		fmt.Sscanf(t, "%f", &f)
		return f
	case float64:
		return t
	default:
		return 0
	}
}

// SubscribeSymbols 批量订阅
func (s *TickerFeed) SubscribeSymbols(ctx context.Context, symbols []string) error {

	s.Lock()
	defer s.Unlock()
	// 只订阅新币种， 过滤掉已经订阅过的
	var toSubscribe []string
	for _, sym := range symbols {
		if _, ok := s.subscribed[sym]; !ok {
			toSubscribe = append(toSubscribe, sym)
			s.subscribed[sym] = struct{}{}
		}
	}
	if len(toSubscribe) == 0 {
		return nil
	}

	args := []map[string]string{}
	for _, sym := range toSubscribe {
		args = append(args, map[string]string{
			"channel": "tickers",
			"instId":  sym,
		})
	}

	subMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	}
	return s.sendMessage(subMsg)
}

// UnsubscribeSymbols 取消订阅
func (s *TickerFeed) UnsubscribeSymbols(ctx context.Context, symbols []string) error {
	args := []map[string]string{}
	s.Lock()
	for _, sym := range symbols {
		delete(s.subscribed, sym)
		args = append(args, map[string]string{
			"channel": "tickers",
			"instId":  sym,
		})
	}
	s.Unlock()

	unsubMsg := map[string]interface{}{
		"op":   "unsubscribe",
		"args": args,
	}
	return s.sendMessage(unsubMsg)
}

// Close 关闭服务
func (s *TickerFeed) Close() error {
	close(s.closeCh)
	return s.conn.Close()
}
