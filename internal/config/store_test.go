package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestAccounts_ParsesCurrentShape(t *testing.T) {
	path := writeConfigFile(t, `{
		"accounts": [
			{"number": "12345", "loginId": "primary", "type": "TFSA", "displayName": "Retirement"}
		],
		"groups": [{"id": "g1", "name": "Registered"}]
	}`)
	store, err := New(path, zerolog.Nop())
	require.NoError(t, err)

	accounts, err := store.Accounts()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Retirement", accounts[0].DisplayName)

	groups, err := store.AccountGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Registered", groups[0].Name)
}

func TestAccounts_ParsesLegacyBareArrayShape(t *testing.T) {
	path := writeConfigFile(t, `[{"accountId": "99999", "loginId": "primary", "type": "RRSP"}]`)
	store, err := New(path, zerolog.Nop())
	require.NoError(t, err)

	accounts, err := store.Accounts()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "99999", accounts[0].Number)
}

func TestFindAccount_MatchesByColonSuffix(t *testing.T) {
	path := writeConfigFile(t, `{"accounts":[{"number":"primary:12345","loginId":"primary","type":"TFSA"}]}`)
	store, err := New(path, zerolog.Nop())
	require.NoError(t, err)

	acc, err := store.FindAccount(domain.AccountRef{LoginID: "primary", AccountNumber: "12345"})
	require.NoError(t, err)
	assert.Equal(t, "primary:12345", acc.Number)
}

func TestSetTargetProportions_RejectsOverOneHundred(t *testing.T) {
	path := writeConfigFile(t, `{"accounts":[{"number":"12345","loginId":"primary","type":"TFSA"}]}`)
	store, err := New(path, zerolog.Nop())
	require.NoError(t, err)

	err = store.SetTargetProportions(domain.AccountRef{LoginID: "primary", AccountNumber: "12345"},
		map[string]float64{"VEQT": 60, "XEQT": 50})
	require.Error(t, err)
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, domain.ConfigErrInvalidProportions, cfgErr.Code)
}

func TestSetTargetProportions_PersistsAndInvalidatesCache(t *testing.T) {
	path := writeConfigFile(t, `{"accounts":[{"number":"12345","loginId":"primary","type":"TFSA"}]}`)
	store, err := New(path, zerolog.Nop())
	require.NoError(t, err)

	ref := domain.AccountRef{LoginID: "primary", AccountNumber: "12345"}
	require.NoError(t, store.SetTargetProportions(ref, map[string]float64{"VEQT": 100}))

	reloaded, err := New(path, zerolog.Nop())
	require.NoError(t, err)
	acc, err := reloaded.FindAccount(ref)
	require.NoError(t, err)
	require.Contains(t, acc.SymbolSettings, "VEQT")
	assert.Equal(t, 100.0, acc.SymbolSettings["VEQT"].TargetProportion)
}

func TestMarkAccountRebalanced_StampsDateOnModel(t *testing.T) {
	path := writeConfigFile(t, `{"accounts":[{"number":"12345","loginId":"primary","type":"TFSA",
		"investmentModels":[{"model":"qqq-temperature","symbol":"QQQ"}]}]}`)
	store, err := New(path, zerolog.Nop())
	require.NoError(t, err)

	ref := domain.AccountRef{LoginID: "primary", AccountNumber: "12345"}
	asOf := time.Date(2026, 7, 1, 15, 30, 0, 0, time.UTC)
	stamped, err := store.MarkAccountRebalanced(ref, "qqq-temperature", asOf)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), stamped)

	acc, err := store.FindAccount(ref)
	require.NoError(t, err)
	require.Len(t, acc.InvestmentModels, 1)
	require.NotNil(t, acc.InvestmentModels[0].LastRebalance)
	assert.Equal(t, stamped, *acc.InvestmentModels[0].LastRebalance)
}

func TestFindAccount_NotFoundReturnsConfigError(t *testing.T) {
	path := writeConfigFile(t, `{"accounts":[]}`)
	store, err := New(path, zerolog.Nop())
	require.NoError(t, err)

	_, err = store.FindAccount(domain.AccountRef{LoginID: "primary", AccountNumber: "nope"})
	require.Error(t, err)
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, domain.ConfigErrNotFound, cfgErr.Code)
}
