package notification

import (
	"log"
	"net/http"
	"sync"
	"time"

	"coinpulse/internal/consts"
	"coinpulse/internal/event"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// keepalive的ping间隔
const pingPeriod = 30 * time.Second
const pongWait = 60 * time.Second

// client send buffer
const sendBufSize = 1024

// Gateway 管理通知 websocket 连接，订阅事件总线上的新通知并推给在线客户端
type Gateway struct {
	bus *event.Bus
	// 使用 RWMutex 保护普通 Map
	mu      sync.RWMutex
	clients map[string]*ClientConn // map[clientID]*ClientConn

	upgrader websocket.Upgrader
	stop     func()
}

func NewGateway(bus *event.Bus) *Gateway {
	g := &Gateway{
		bus:     bus,
		mu:      sync.RWMutex{},
		clients: make(map[string]*ClientConn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	// 启动监听路由器产出的通知
	ch, cancel := bus.SubscribeNotifications()
	g.stop = cancel
	go g.listenForNotifications(ch)

	return g
}

// ServeWS 建立 websocket 连接，需要先过 AuthToken 中间件拿到 userID
func (g *Gateway) ServeWS(c *gin.Context) {
	clientID := c.Query("client_id")
	if clientID == "" {
		// 要求 client_id
		c.Writer.WriteHeader(http.StatusUnauthorized)
		return
	}
	userID := c.GetInt64(consts.UserID)

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("NotificationGateway upgrade error:", err)
		return
	}

	client := &ClientConn{
		ClientID: clientID,
		UserID:   userID,
		Conn:     conn,
		Send:     make(chan []byte, sendBufSize),
	}

	// 使用读写锁确保原子替换
	var oldClient *ClientConn
	g.mu.Lock()
	{
		// 1. 检查是否存在旧连接
		if existing, ok := g.clients[clientID]; ok {
			oldClient = existing
			oldClient.replaced = true // 标记旧连接
			log.Printf("NotificationGateway: client %s reconnected, marking old connection as replaced.", clientID)
		}

		// 2. 存入新连接
		g.clients[clientID] = client
	}
	g.mu.Unlock()

	// 3. 异步关闭旧连接
	if oldClient != nil {
		// 异步关闭，防止阻塞ServeWS
		go oldClient.Close()
		log.Printf("NotificationGateway: closed old connection for %s", clientID)
	}

	defer func() {
		// 从活跃 clients map 中移除（仅在未被替换时）
		g.mu.Lock()
		{
			// 再次检查，确保只有当前的 client 才能被移除
			if current, ok := g.clients[clientID]; ok && current == client {
				delete(g.clients, clientID)
				log.Printf("NotificationGateway: removed client %s from active map.", clientID)
			} else {
				log.Printf("NotificationGateway: defer remove skipped for %s (replaced or already removed).", clientID)
			}
		}
		g.mu.Unlock()

		// 无论如何，确保本 client 的资源被关闭
		client.Close()
	}()

	// 启动 writePump
	go client.writePump()

	// ReadPump 阻塞直到客户端关闭
	client.readPump()
}

// 监听事件总线，按 UserID 定向下发
func (g *Gateway) listenForNotifications(ch <-chan event.NotificationPushed) {
	for n := range ch {
		g.sendToUser(n.UserID, n.Payload)
	}
}

// sendToUser 把通知推给该用户的全部在线连接（多端同时在线）
func (g *Gateway) sendToUser(userID int64, data []byte) int {
	g.mu.RLock()
	// 遍历 Map 需要在锁的保护下
	clientsCopy := make([]*ClientConn, 0, 4)
	for _, c := range g.clients {
		if c.UserID == userID {
			clientsCopy = append(clientsCopy, c)
		}
	}
	g.mu.RUnlock()

	// 在解锁后对副本进行操作
	sent := 0
	for _, c := range clientsCopy {
		if c.safeSend(data) {
			sent++
		}
	}
	return sent
}

// Shutdown 取消订阅并关闭全部连接
func (g *Gateway) Shutdown() {
	if g.stop != nil {
		g.stop()
	}

	g.mu.Lock()
	clientsCopy := make([]*ClientConn, 0, len(g.clients))
	for _, c := range g.clients {
		clientsCopy = append(clientsCopy, c)
	}
	g.clients = make(map[string]*ClientConn)
	g.mu.Unlock()

	for _, c := range clientsCopy {
		c.Close()
	}
}
