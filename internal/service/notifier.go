// notifier.go — WebSocket-хаб уведомлений о ходе загрузок.
//
// Подписчики подключаются к /ws/uploads и получают события
// жизненного цикла всех сессий (initialized, chunk, completed,
// cancelled, expired) в формате JSON.
//
// Доставка fire-and-forget: медленный подписчик с переполненным
// буфером отключается, приём чанков никогда не блокируется
// уведомлениями.
package service

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// notifierSendBuffer — размер буфера исходящих сообщений подписчика
	notifierSendBuffer = 64
	// notifierWriteWait — таймаут записи одного сообщения
	notifierWriteWait = 5 * time.Second
	// notifierPingInterval — интервал ping для обнаружения мёртвых соединений
	notifierPingInterval = 30 * time.Second
)

// Notifier — хаб WebSocket-подписчиков. Реализует EventSink.
type Notifier struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*notifierClient]bool
}

// notifierClient — одно WebSocket-соединение подписчика.
type notifierClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewNotifier создаёт хаб уведомлений.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Доступ контролируется на уровне ingress, как и REST API
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*notifierClient]bool),
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Publish рассылает событие всем подписчикам.
// Не блокируется: подписчик с переполненным буфером отключается.
func (n *Notifier) Publish(event UploadEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("Ошибка сериализации события", slog.String("error", err.Error()))
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for client := range n.clients {
		select {
		case client.send <- data:
		default:
			// Буфер переполнен: закрываем канал, writePump завершит соединение
			go n.remove(client)
		}
	}
}

// Subscribers возвращает текущее количество подписчиков.
func (n *Notifier) Subscribers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.clients)
}

// ServeHTTP обрабатывает подключение нового WebSocket-подписчика.
func (n *Notifier) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Warn("Ошибка WebSocket upgrade",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	client := &notifierClient{
		conn: conn,
		send: make(chan []byte, notifierSendBuffer),
	}

	n.mu.Lock()
	n.clients[client] = true
	n.mu.Unlock()

	n.logger.Debug("Подписчик подключён", slog.String("remote", r.RemoteAddr))

	go n.writePump(client)
	go n.readPump(client)
}

// Close отключает всех подписчиков. Вызывается при shutdown.
func (n *Notifier) Close() {
	n.mu.Lock()
	clients := make([]*notifierClient, 0, len(n.clients))
	for client := range n.clients {
		clients = append(clients, client)
	}
	n.clients = make(map[*notifierClient]bool)
	n.mu.Unlock()

	for _, client := range clients {
		close(client.send)
	}
}

// remove отключает подписчика и закрывает его канал.
func (n *Notifier) remove(client *notifierClient) {
	n.mu.Lock()
	if !n.clients[client] {
		n.mu.Unlock()
		return
	}
	delete(n.clients, client)
	n.mu.Unlock()

	close(client.send)
	n.logger.Debug("Подписчик отключён")
}

// writePump отправляет сообщения из буфера в соединение.
// Завершается при закрытии канала send.
func (n *Notifier) writePump(client *notifierClient) {
	ticker := time.NewTicker(notifierPingInterval)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			if !ok {
				_ = client.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(notifierWriteWait))
				return
			}
			_ = client.conn.SetWriteDeadline(time.Now().Add(notifierWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				n.remove(client)
				return
			}
		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(notifierWriteWait)); err != nil {
				n.remove(client)
				return
			}
		}
	}
}

// readPump вычитывает входящие фреймы (подписчики ничего не шлют,
// но чтение нужно для обработки close и pong).
func (n *Notifier) readPump(client *notifierClient) {
	defer n.remove(client)

	client.conn.SetReadLimit(512)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
