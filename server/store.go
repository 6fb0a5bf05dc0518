package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/minaorangina/rummy/protocol"
	uuid "github.com/satori/go.uuid"
)

var (
	ErrUnknownTableID = errors.New("unknown table ID")
	ErrUnknownToken   = errors.New("unknown token")
	ErrFnDuplicateID  = func(id protocol.ID) error {
		return fmt.Errorf("account with id \"%s\" already exists", id)
	}
)

// Account is who a bearer token belongs to
type Account struct {
	ID       protocol.ID `json:"id"`
	Username string      `json:"username"`
}

// AccountStore maps bearer tokens to accounts
type AccountStore interface {
	FindAccount(token string) (Account, error)
	AddAccount(token string, acct Account) error
}

// InMemoryAccountStore holds accounts in memory. With Guests set,
// unknown tokens are given a fresh guest account.
type InMemoryAccountStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	Guests   bool
}

func NewInMemoryAccountStore() *InMemoryAccountStore {
	return &InMemoryAccountStore{accounts: map[string]Account{}}
}

func (s *InMemoryAccountStore) FindAccount(token string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct, ok := s.accounts[token]; ok {
		return acct, nil
	}
	if !s.Guests || token == "" {
		return Account{}, ErrUnknownToken
	}
	id := uuid.NewV4().String()
	acct := Account{ID: protocol.ID(id), Username: "guest-" + id[:4]}
	s.accounts[token] = acct
	return acct, nil
}

func (s *InMemoryAccountStore) AddAccount(token string, acct Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.ID == acct.ID {
			return ErrFnDuplicateID(acct.ID)
		}
	}
	s.accounts[token] = acct
	return nil
}

// TableStore maps table id to table
type TableStore interface {
	FindTable(tableID protocol.ID) (*Table, error)
	FindOrCreateTable(tableID protocol.ID) *Table
}

type InMemoryTableStore struct {
	mu     sync.Mutex
	tables map[protocol.ID]*Table
	newFn  func(tableID protocol.ID) *Table
}

// NewInMemoryTableStore constructs a store that builds tables with newFn
func NewInMemoryTableStore(newFn func(tableID protocol.ID) *Table) *InMemoryTableStore {
	return &InMemoryTableStore{
		tables: map[protocol.ID]*Table{},
		newFn:  newFn,
	}
}

func (s *InMemoryTableStore) FindTable(tableID protocol.ID) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.tables[tableID]
	if !ok {
		return nil, ErrUnknownTableID
	}
	return table, nil
}

func (s *InMemoryTableStore) FindOrCreateTable(tableID protocol.ID) *Table {
	s.mu.Lock()
	defer s.mu.Unlock()

	if table, ok := s.tables[tableID]; ok {
		return table
	}
	table := s.newFn(tableID)
	s.tables[tableID] = table
	return table
}
