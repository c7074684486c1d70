package aggregator

import (
	"testing"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigStore struct {
	accounts []domain.Account
	groups   []domain.AccountGroup
}

func (f *fakeConfigStore) Accounts() ([]domain.Account, error)           { return f.accounts, nil }
func (f *fakeConfigStore) AccountGroups() ([]domain.AccountGroup, error) { return f.groups, nil }
func (f *fakeConfigStore) FindAccount(ref domain.AccountRef) (*domain.Account, error) {
	for _, a := range f.accounts {
		if a.Number == ref.AccountNumber {
			return &a, nil
		}
	}
	return nil, &domain.ConfigError{Code: domain.ConfigErrInvalidAccount, Message: "not found"}
}
func (f *fakeConfigStore) SetTargetProportions(domain.AccountRef, map[string]float64) error { return nil }
func (f *fakeConfigStore) SetSymbolNotes(domain.AccountRef, string, string) error            { return nil }
func (f *fakeConfigStore) SetPlanningContext(domain.AccountRef, string) error                { return nil }
func (f *fakeConfigStore) MarkAccountRebalanced(domain.AccountRef, string, time.Time) (time.Time, error) {
	return time.Time{}, nil
}

func TestResolveAccounts_All(t *testing.T) {
	store := &fakeConfigStore{accounts: []domain.Account{{Number: "1"}, {Number: "2"}}}
	accounts, err := ResolveAccounts(store, "all")
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestResolveAccounts_Default(t *testing.T) {
	store := &fakeConfigStore{accounts: []domain.Account{{Number: "1"}, {Number: "2"}}}
	accounts, err := ResolveAccounts(store, "default")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "1", accounts[0].Number)
}

func TestResolveAccounts_SingleAccount(t *testing.T) {
	store := &fakeConfigStore{accounts: []domain.Account{{Number: "123"}}}
	accounts, err := ResolveAccounts(store, "123")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "123", accounts[0].Number)
}

func TestResolveAccounts_Group(t *testing.T) {
	store := &fakeConfigStore{
		accounts: []domain.Account{
			{Number: "1", GroupName: "registered"},
			{Number: "2", GroupName: "registered"},
			{Number: "3", GroupName: "taxable"},
		},
		groups: []domain.AccountGroup{{ID: "g1", Name: "registered"}, {ID: "g2", Name: "taxable"}},
	}
	accounts, err := ResolveAccounts(store, "group:registered")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
}

func TestResolveAccounts_UnknownGroupErrors(t *testing.T) {
	store := &fakeConfigStore{accounts: []domain.Account{{Number: "1"}}}
	_, err := ResolveAccounts(store, "group:nope")
	require.Error(t, err)
}
