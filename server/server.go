// Package server is a single-process rummy table server speaking the
// same protocol as the production backend. It exists for local
// development and end-to-end tests of the client.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/minaorangina/rummy/protocol"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Opts struct {
	Accounts AccountStore
	Tables   TableStore
	Table    TableOpts
	Logger   *zap.Logger
}

// GameServer is a game server
type GameServer struct {
	accounts AccountStore
	tables   TableStore
	log      *zap.Logger
	http.Server
}

// NewServer creates a new GameServer
func NewServer(opts Opts) *GameServer {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &GameServer{
		accounts: opts.Accounts,
		tables:   opts.Tables,
		log:      log.Named("server"),
	}
	if s.accounts == nil {
		s.accounts = NewInMemoryAccountStore()
	}
	if s.tables == nil {
		tableOpts := opts.Table
		if tableOpts.Logger == nil {
			tableOpts.Logger = s.log
		}
		s.tables = NewInMemoryTableStore(func(id protocol.ID) *Table {
			return NewTable(id, tableOpts)
		})
	}

	router := chi.NewRouter()
	router.Get("/api/rummy/game/{tableId}", s.HandleGetGame)
	router.Get("/socket", s.HandleWS)

	access := zap.NewStdLog(s.log.Named("http")).Writer()
	s.Handler = handlers.RecoveryHandler()(
		handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		)(handlers.LoggingHandler(access, router)),
	)
	return s
}

// ServeHTTP serves http
func (g *GameServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.Handler.ServeHTTP(w, r)
}

// Accounts exposes the account store so tokens can be registered
func (g *GameServer) Accounts() AccountStore {
	return g.accounts
}

// HandleGetGame returns the masked state of a table
func (g *GameServer) HandleGetGame(w http.ResponseWriter, r *http.Request) {
	if _, err := g.authenticate(r); err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	tableID := protocol.ID(chi.URLParam(r, "tableId"))
	table, err := g.tables.FindTable(tableID)
	if errors.Is(err, ErrUnknownTableID) {
		writeError(w, http.StatusNotFound, "Table not found")
		return
	}
	if err != nil {
		g.log.Error("finding table", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get game state")
		return
	}

	writeJSON(w, http.StatusOK, table.State())
}

// HandleWS upgrades an authenticated request and serves its frames
func (g *GameServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	acct, err := g.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("could not upgrade to websocket", zap.Error(err))
		return
	}

	c := newClient(acct, rawConn, g.log)
	go c.writePump()
	go func() {
		c.readPump(g.handle)
		if table := c.joined(); table != nil {
			table.Leave(c)
		}
		c.close()
	}()
}

func (g *GameServer) handle(c *client, env protocol.Envelope) {
	if env.Event == protocol.JoinTable {
		var msg protocol.JoinTableMsg
		if err := json.Unmarshal(env.Data, &msg); err != nil || msg.TableID == "" {
			c.emit(protocol.Error, "Missing table ID")
			return
		}
		if prev := c.joined(); prev != nil && prev.id != msg.TableID {
			prev.Leave(c)
		}
		g.tables.FindOrCreateTable(msg.TableID).Join(c)
		return
	}

	table := c.joined()
	if table == nil {
		c.emit(protocol.Error, "Join a table first")
		return
	}
	table.Handle(c, env)
}

// authenticate reads the bearer token from the header or the token
// query parameter
func (g *GameServer) authenticate(r *http.Request) (Account, error) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || token == r.Header.Get("Authorization") {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return Account{}, ErrUnknownToken
	}
	return g.accounts.FindAccount(token)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, protocol.ErrorBody{Error: msg})
}
