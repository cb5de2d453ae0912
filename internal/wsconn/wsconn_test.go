package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/craftcalc/internal/apperror"
)

func mockWSServer(t *testing.T, handler func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		if handler != nil {
			handler(conn)
		}
	}))
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func echo(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, typ, data); err != nil {
			return
		}
	}
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(context.Background()); err != nil {
			return
		}
	}
}

func testConfig(url string) Config {
	cfg := DefaultConfig(url, "prices")
	cfg.PingInterval = 0
	cfg.InitialBackoff = 20 * time.Millisecond
	cfg.MaxBackoff = 50 * time.Millisecond
	return cfg
}

func connect(t *testing.T, cfg Config, setup func(*Client)) *Client {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if setup != nil {
		setup(c)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Config{}); apperror.GetCode(err) != apperror.CodeRequiredField {
		t.Errorf("code = %s", apperror.GetCode(err))
	}
}

func TestClient_ConnectAndStates(t *testing.T) {
	srv, url := mockWSServer(t, drain)
	defer srv.Close()

	var (
		mu     sync.Mutex
		states []State
	)
	c := connect(t, testConfig(url), func(c *Client) {
		c.OnStateChange(func(s State, err error) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		})
	})

	if !c.IsConnected() {
		t.Fatalf("state = %v", c.State())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 || states[0] != StateConnecting || states[1] != StateConnected {
		t.Errorf("states = %v", states)
	}
}

func TestClient_ConnectFailure(t *testing.T) {
	c, _ := New(testConfig("ws://127.0.0.1:1"))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := c.Connect(ctx)
	if apperror.GetCode(err) != apperror.CodeWebSocketConnectionError {
		t.Fatalf("code = %s", apperror.GetCode(err))
	}
	if c.State() != StateDisconnected {
		t.Errorf("state = %v", c.State())
	}
	if err := c.Send(ctx, []byte("x")); apperror.GetCode(err) != apperror.CodeWebSocketClosed {
		t.Errorf("send on disconnected client: %v", err)
	}
}

func TestClient_EchoAndSubscribeHook(t *testing.T) {
	srv, url := mockWSServer(t, echo)
	defer srv.Close()

	got := make(chan []byte, 1)
	connect(t, testConfig(url), func(c *Client) {
		c.OnMessage(func(ctx context.Context, msg []byte) { got <- msg })
		c.OnConnect(func(ctx context.Context) error {
			return c.SendJSON(ctx, map[string]any{"op": "subscribe", "server": "draconiros"})
		})
	})

	select {
	case msg := <-got:
		var parsed map[string]any
		if err := json.Unmarshal(msg, &parsed); err != nil {
			t.Fatalf("not json: %s", msg)
		}
		if parsed["op"] != "subscribe" {
			t.Errorf("op = %v", parsed["op"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no echo")
	}
}

func TestClient_ConcurrentSend(t *testing.T) {
	var count atomic.Int32
	srv, url := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				return
			}
			count.Add(1)
		}
	})
	defer srv.Close()

	c := connect(t, testConfig(url), nil)

	const senders, each = 8, 5
	var wg sync.WaitGroup
	for i := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range each {
				if err := c.SendJSON(context.Background(), map[string]int{"sender": i, "n": j}); err != nil {
					t.Errorf("SendJSON: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for count.Load() < senders*each && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := count.Load(); got != senders*each {
		t.Errorf("server received %d, want %d", got, senders*each)
	}
}

func TestClient_ReconnectsAfterServerDrop(t *testing.T) {
	var accepts atomic.Int32
	srv, url := mockWSServer(t, func(conn *websocket.Conn) {
		if accepts.Add(1) == 1 {
			return // first connection is dropped right away
		}
		drain(conn)
	})
	defer srv.Close()

	c := connect(t, testConfig(url), nil)

	deadline := time.Now().Add(3 * time.Second)
	for accepts.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	for !c.IsConnected() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if accepts.Load() < 2 || !c.IsConnected() {
		t.Fatalf("accepts=%d state=%v, want a second live connection", accepts.Load(), c.State())
	}
}

func TestClient_OversizedMessageDropsConnection(t *testing.T) {
	srv, url := mockWSServer(t, func(conn *websocket.Conn) {
		conn.Write(context.Background(), websocket.MessageText, make([]byte, 4096))
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.Close()

	cfg := testConfig(url)
	cfg.MaxMessageSize = 100
	cfg.InitialBackoff = time.Second
	c := connect(t, cfg, nil)

	time.Sleep(150 * time.Millisecond)
	if c.IsConnected() {
		t.Error("oversized frame should drop the connection")
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	srv, url := mockWSServer(t, drain)
	defer srv.Close()

	c := connect(t, testConfig(url), nil)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateClosed {
		t.Errorf("state = %v", c.State())
	}
	if err := c.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := c.Connect(context.Background()); apperror.GetCode(err) != apperror.CodeWebSocketClosed {
		t.Errorf("connect after close: %v", err)
	}
}
