package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/minaorangina/rummy/deck"
	"github.com/minaorangina/rummy/protocol"
	"github.com/stretchr/testify/require"
)

var cards = deck.MustParse

var (
	anaHand = cards("AS", "2S", "3S", "4H", "5H", "6H", "7C", "7D", "7S", "9D", "10D", "JD", "KC")
	boHand  = cards("2H", "3H", "8C", "8D", "9C", "10C", "JC", "QC", "KD", "KH", "5D", "6D", "4C")
	// first card on the discard pile, and the first card drawn from the stock
	firstDiscard = cards("2C")[0]
	firstDraw    = cards("QD")[0]
)

// fixedDeck deals anaHand to the first player to join and boHand to the
// second
func fixedDeck() deck.Deck {
	d := deck.Deck{}
	d = append(d, cards("5S", "6S")...)
	d = append(d, firstDraw, firstDiscard)
	d = append(d, boHand...)
	d = append(d, anaHand...)
	return d
}

func newTestServer(t *testing.T) (*GameServer, *httptest.Server) {
	t.Helper()
	srv := NewServer(Opts{Table: TableOpts{NewDeck: fixedDeck}})
	require.NoError(t, srv.Accounts().AddAccount("ana-token", Account{ID: "1", Username: "ana"}))
	require.NoError(t, srv.Accounts().AddAccount("bo-token", Account{ID: "2", Username: "bo"}))

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

type testConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *httptest.Server, token string) *testConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/socket?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testConn{t: t, conn: conn}
}

func (c *testConn) send(event protocol.Event, payload interface{}) {
	c.t.Helper()
	env, err := protocol.NewEnvelope(event, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(env))
}

// expect reads frames until one named event arrives and decodes it into v
func (c *testConn) expect(event protocol.Event, v interface{}) {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var env protocol.Envelope
		require.NoError(c.t, c.conn.ReadJSON(&env), "waiting for %s", event)
		if env.Event != event {
			continue
		}
		if v != nil {
			require.NoError(c.t, json.Unmarshal(env.Data, v))
		}
		return
	}
}

func getGame(t *testing.T, ts *httptest.Server, tableID, token string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/rummy/game/"+tableID, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var body json.RawMessage
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return res, body
}

// startGame seats ana then bo at table 1 and waits for both hands
func startGame(t *testing.T, ts *httptest.Server) (ana, bo *testConn) {
	t.Helper()
	ana = dial(t, ts, "ana-token")
	ana.send(protocol.JoinTable, protocol.JoinTableMsg{TableID: "1"})
	ana.expect(protocol.State, nil)

	bo = dial(t, ts, "bo-token")
	bo.send(protocol.JoinTable, protocol.JoinTableMsg{TableID: "1"})

	ana.expect(protocol.YourHand, nil)
	bo.expect(protocol.YourHand, nil)
	return ana, bo
}
