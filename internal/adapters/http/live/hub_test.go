package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/crease/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func read(conn *websocket.Conn) (Message, error) {
	var m Message
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	err := conn.ReadJSON(&m)
	return m, err
}

func TestHub(t *testing.T) {
	convey.Convey("Given a running hub behind a test server", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := NewHub(nil)
		go hub.Run(ctx)

		mux := http.NewServeMux()
		mux.HandleFunc("GET /live", hub.HandleWS)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		convey.Convey("A client following one match only sees that match", func() {
			one := dial(t, srv, "?match=m-1")
			defer one.Close()
			all := dial(t, srv, "")
			defer all.Close()

			hello, err := read(one)
			convey.So(err, convey.ShouldBeNil)
			convey.So(hello.Type, convey.ShouldEqual, "hello")
			_, err = read(all)
			convey.So(err, convey.ShouldBeNil)
			convey.So(hub.Clients(), convey.ShouldEqual, 2)

			hub.Publish("m-2", "state", map[string]int{"runs": 4})
			hub.Publish("m-1", "ball", map[string]int{"seq": 3})

			got, err := read(one)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got.Type, convey.ShouldEqual, "ball")
			convey.So(got.MatchID, convey.ShouldEqual, "m-1")

			first, err := read(all)
			convey.So(err, convey.ShouldBeNil)
			convey.So(first.MatchID, convey.ShouldEqual, "m-2")
			second, err := read(all)
			convey.So(err, convey.ShouldBeNil)
			convey.So(second.MatchID, convey.ShouldEqual, "m-1")
		})

		convey.Convey("A subscribe message adds a match", func() {
			conn := dial(t, srv, "?match=m-1")
			defer conn.Close()
			_, err := read(conn)
			convey.So(err, convey.ShouldBeNil)

			convey.So(conn.WriteJSON(subscribeMsg{Action: "subscribe", Matches: []string{"m-9"}}), convey.ShouldBeNil)

			ack, err := read(conn)
			convey.So(err, convey.ShouldBeNil)
			convey.So(ack.Type, convey.ShouldEqual, "subscribed")
			convey.So(ack.Payload, convey.ShouldHaveLength, 2)

			hub.Publish("m-9", "stats", nil)
			got, err := read(conn)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got.Type, convey.ShouldEqual, "stats")
			convey.So(got.MatchID, convey.ShouldEqual, "m-9")
		})

		convey.Convey("Cross-origin browsers are checked against the allow list", func() {
			check := originChecker([]string{"https://scores.example"})
			r := httptest.NewRequest(http.MethodGet, "/live", nil)
			convey.So(check(r), convey.ShouldBeTrue)
			r.Header.Set("Origin", "https://scores.example")
			convey.So(check(r), convey.ShouldBeTrue)
			r.Header.Set("Origin", "https://evil.example")
			convey.So(check(r), convey.ShouldBeFalse)
			convey.So(originChecker([]string{"*"})(r), convey.ShouldBeTrue)
		})
	})
}
