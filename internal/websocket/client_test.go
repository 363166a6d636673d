package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/arcadehub/arcade/internal/domain"
)

type fakeCatalog struct {
	games map[string]*domain.Game
}

func (f *fakeCatalog) BySlug(_ context.Context, slug string) (*domain.Game, error) {
	game, ok := f.games[slug]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	return game, nil
}

// frameReader splits batched frames back into individual messages. writePump
// coalesces queued messages into one frame separated by newlines.
type frameReader struct {
	conn    *websocket.Conn
	pending [][]byte
}

func (r *frameReader) next(timeout time.Duration) (*Message, error) {
	if len(r.pending) == 0 {
		r.conn.SetReadDeadline(time.Now().Add(timeout))
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		r.pending = bytes.Split(data, []byte{'\n'})
	}
	data := r.pending[0]
	r.pending = r.pending[1:]

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func errorText(msg *Message) string {
	data, _ := msg.Data.(map[string]any)
	text, _ := data["error"].(string)
	return text
}

func waitForCount(hub *Hub, slug string, want int) bool {
	for i := 0; i < 100; i++ {
		if hub.GetSubscriberCount(slug) == want {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestClient_Protocol(t *testing.T) {
	Convey("Given a signed-in player connected over websocket", t, func() {
		hub := NewHub(testLogger())
		go hub.Run()
		Reset(hub.Stop)

		catalog := &fakeCatalog{games: map[string]*domain.Game{
			"snake":  {ID: 1, Slug: "snake", IsActive: true},
			"legacy": {ID: 2, Slug: "legacy", IsActive: false},
		}}

		userID := int64(42)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ServeWs(hub, catalog, testLogger(), w, r, Identity{UserName: "ada", UserID: &userID})
		}))
		Reset(srv.Close)

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		So(err, ShouldBeNil)
		Reset(func() { conn.Close() })

		rd := &frameReader{conn: conn}

		Convey("Then the welcome message names the player", func() {
			msg, err := rd.next(time.Second)
			So(err, ShouldBeNil)
			So(msg.Type, ShouldEqual, MessageTypeConnected)

			data, ok := msg.Data.(map[string]any)
			So(ok, ShouldBeTrue)
			So(data["user"], ShouldEqual, "ada")
			So(data["user_id"], ShouldEqual, float64(42))
		})

		Convey("When the player subscribes to a known game", func() {
			_, err := rd.next(time.Second) // welcome
			So(err, ShouldBeNil)

			So(conn.WriteJSON(map[string]string{"type": "subscribe", "game_slug": "snake"}), ShouldBeNil)

			Convey("Then the ack echoes the game and the player", func() {
				msg, err := rd.next(time.Second)
				So(err, ShouldBeNil)
				So(msg.Type, ShouldEqual, "subscribed")
				So(msg.GameSlug, ShouldEqual, "snake")

				data, _ := msg.Data.(map[string]any)
				So(data["user"], ShouldEqual, "ada")
				So(waitForCount(hub, "snake", 1), ShouldBeTrue)
			})

			Convey("And unsubscribing acks and drops the subscription", func() {
				_, err := rd.next(time.Second) // subscribe ack
				So(err, ShouldBeNil)
				So(waitForCount(hub, "snake", 1), ShouldBeTrue)

				So(conn.WriteJSON(map[string]string{"type": "unsubscribe", "game_slug": "snake"}), ShouldBeNil)

				msg, err := rd.next(time.Second)
				So(err, ShouldBeNil)
				So(msg.Type, ShouldEqual, "unsubscribed")
				So(waitForCount(hub, "snake", 0), ShouldBeTrue)
			})
		})

		Convey("When the player subscribes without a game slug", func() {
			_, err := rd.next(time.Second)
			So(err, ShouldBeNil)

			So(conn.WriteJSON(map[string]string{"type": "subscribe"}), ShouldBeNil)

			Convey("Then the request is rejected", func() {
				msg, err := rd.next(time.Second)
				So(err, ShouldBeNil)
				So(msg.Type, ShouldEqual, MessageTypeError)
				So(errorText(msg), ShouldContainSubstring, "game_slug")
			})
		})

		Convey("When the player subscribes to a game the catalog rejects", func() {
			_, err := rd.next(time.Second)
			So(err, ShouldBeNil)

			Convey("Then an unknown slug is refused", func() {
				So(conn.WriteJSON(map[string]string{"type": "subscribe", "game_slug": "pinball"}), ShouldBeNil)

				msg, err := rd.next(time.Second)
				So(err, ShouldBeNil)
				So(msg.Type, ShouldEqual, MessageTypeError)
				So(errorText(msg), ShouldContainSubstring, "unknown game")
				So(hub.GetSubscriberCount("pinball"), ShouldEqual, 0)
			})

			Convey("And an inactive game is refused the same way", func() {
				So(conn.WriteJSON(map[string]string{"type": "subscribe", "game_slug": "legacy"}), ShouldBeNil)

				msg, err := rd.next(time.Second)
				So(err, ShouldBeNil)
				So(msg.Type, ShouldEqual, MessageTypeError)
				So(hub.GetSubscriberCount("legacy"), ShouldEqual, 0)
			})
		})

		Convey("When the player pings", func() {
			_, err := rd.next(time.Second)
			So(err, ShouldBeNil)

			So(conn.WriteJSON(map[string]string{"type": "ping"}), ShouldBeNil)

			Convey("Then a pong comes back", func() {
				msg, err := rd.next(time.Second)
				So(err, ShouldBeNil)
				So(msg.Type, ShouldEqual, MessageTypePong)
			})
		})

		Convey("When the player sends something that is not JSON", func() {
			_, err := rd.next(time.Second)
			So(err, ShouldBeNil)

			So(conn.WriteMessage(websocket.TextMessage, []byte("not json")), ShouldBeNil)

			Convey("Then the client is told and the connection survives", func() {
				msg, err := rd.next(time.Second)
				So(err, ShouldBeNil)
				So(msg.Type, ShouldEqual, MessageTypeError)
				So(errorText(msg), ShouldContainSubstring, "invalid message format")

				So(conn.WriteJSON(map[string]string{"type": "ping"}), ShouldBeNil)
				msg, err = rd.next(time.Second)
				So(err, ShouldBeNil)
				So(msg.Type, ShouldEqual, MessageTypePong)
			})
		})
	})
}

func TestClient_GuestIdentity(t *testing.T) {
	Convey("Given a connection with no resolved identity", t, func() {
		hub := NewHub(testLogger())
		go hub.Run()
		Reset(hub.Stop)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ServeWs(hub, nil, testLogger(), w, r, Identity{})
		}))
		Reset(srv.Close)

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		So(err, ShouldBeNil)
		Reset(func() { conn.Close() })

		rd := &frameReader{conn: conn}

		Convey("Then the welcome falls back to a guest identity", func() {
			msg, err := rd.next(time.Second)
			So(err, ShouldBeNil)
			So(msg.Type, ShouldEqual, MessageTypeConnected)

			data, _ := msg.Data.(map[string]any)
			So(data["user"], ShouldEqual, "guest")
			So(data, ShouldNotContainKey, "user_id")
		})

		Convey("And with no catalog wired, any slug is accepted", func() {
			_, err := rd.next(time.Second)
			So(err, ShouldBeNil)

			So(conn.WriteJSON(map[string]string{"type": "subscribe", "game_slug": "snake"}), ShouldBeNil)

			msg, err := rd.next(time.Second)
			So(err, ShouldBeNil)
			So(msg.Type, ShouldEqual, "subscribed")

			data, _ := msg.Data.(map[string]any)
			So(data["user"], ShouldEqual, "guest")
		})
	})
}
