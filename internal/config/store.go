// Package config implements the C3 accounts-config contract: a single JSON
// file describing display names, account groups, and per-account settings,
// cached and rewritten atomically on mutation (spec §4.3).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/rs/zerolog"
)

// fileAccount is the on-disk shape of one account entry. Older documents
// may use "accountId" instead of "number"; both are accepted on read.
type fileAccount struct {
	Number               string                        `json:"number"`
	AccountID             string                        `json:"accountId,omitempty"`
	LoginID              string                        `json:"loginId"`
	Type                 string                        `json:"type"`
	Beneficiary          string                        `json:"clientAccountType,omitempty"`
	DisplayName          string                        `json:"displayName,omitempty"`
	GroupName            string                        `json:"groupName,omitempty"`
	CAGRStartDate        *string                       `json:"cagrStartDate,omitempty"`
	NetDepositAdjustment float64                       `json:"netDepositAdjustment,omitempty"`
	IgnoreSittingCash    *float64                      `json:"ignoreSittingCash,omitempty"`
	RebalancePeriod      *int                          `json:"rebalancePeriod,omitempty"`
	InvestmentModels     []fileInvestmentModel         `json:"investmentModels,omitempty"`
	SymbolSettings       map[string]fileSymbolSetting  `json:"symbolSettings,omitempty"`
	PlanningContext      string                        `json:"planningContext,omitempty"`
}

type fileInvestmentModel struct {
	Model           string  `json:"model"`
	Symbol          string  `json:"symbol"`
	LeveragedSymbol string  `json:"leveragedSymbol,omitempty"`
	ReserveSymbol   string  `json:"reserveSymbol,omitempty"`
	LastRebalance   *string `json:"lastRebalance,omitempty"`
	RebalancePeriod *int    `json:"rebalancePeriod,omitempty"`
}

type fileSymbolSetting struct {
	TargetProportion float64 `json:"targetProportion"`
	Notes            string  `json:"notes,omitempty"`
}

type fileGroup struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
}

// fileDocument is the current on-disk shape. A legacy document may instead
// be a bare array of accounts, or nest accounts under "accounts" with no
// "groups" key at all — both are tolerated by parseDocument().
type fileDocument struct {
	Accounts []fileAccount `json:"accounts"`
	Groups   []fileGroup   `json:"groups,omitempty"`
}

const dateOnly = "2006-01-02"

// FileConfigStore implements domain.ConfigStore against a single JSON file,
// caching the parsed document keyed by (size, mtime) so repeated reads
// within a request don't re-parse (spec §4.3).
type FileConfigStore struct {
	path string
	log  zerolog.Logger

	mu       sync.Mutex
	cachedAt statKey
	doc      fileDocument
}

type statKey struct {
	size    int64
	modTime time.Time
}

// New builds a FileConfigStore reading/writing the file at path. The file
// need not exist yet; an empty document is assumed until the first mutation.
func New(path string, log zerolog.Logger) (*FileConfigStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	s := &FileConfigStore{path: abs, log: log.With().Str("component", "config_store").Logger()}
	if _, err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureLoaded returns the current document, reloading from disk only if
// the file's (size, mtime) has changed since the last read.
func (s *FileConfigStore) ensureLoaded() (fileDocument, error) {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return fileDocument{}, nil
	}
	if err != nil {
		return fileDocument{}, fmt.Errorf("stat config file: %w", err)
	}
	key := statKey{size: info.Size(), modTime: info.ModTime()}
	if key == s.cachedAt {
		return s.doc, nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fileDocument{}, fmt.Errorf("read config file: %w", err)
	}
	doc, err := parseDocument(raw)
	if err != nil {
		return fileDocument{}, &domain.ConfigError{Code: domain.ConfigErrParseError, Message: err.Error()}
	}
	s.doc = doc
	s.cachedAt = key
	return doc, nil
}

// parseDocument tolerates the current {accounts,groups} shape and the
// legacy bare-array-of-accounts shape.
func parseDocument(raw []byte) (fileDocument, error) {
	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err == nil && (doc.Accounts != nil || doc.Groups != nil) {
		return doc, nil
	}
	var legacy []fileAccount
	if err := json.Unmarshal(raw, &legacy); err == nil {
		return fileDocument{Accounts: legacy}, nil
	}
	return fileDocument{}, fmt.Errorf("unrecognized accounts config shape")
}

func accountNumberOf(a fileAccount) string {
	if a.Number != "" {
		return a.Number
	}
	return a.AccountID
}

func toDomainAccount(a fileAccount) domain.Account {
	out := domain.Account{
		LoginID:              a.LoginID,
		Number:               accountNumberOf(a),
		Type:                 domain.AccountType(a.Type),
		Beneficiary:          a.Beneficiary,
		DisplayName:          a.DisplayName,
		GroupName:            a.GroupName,
		NetDepositAdjustment: a.NetDepositAdjustment,
		IgnoreSittingCash:    a.IgnoreSittingCash,
		RebalancePeriod:      a.RebalancePeriod,
		PlanningContext:      a.PlanningContext,
	}
	if a.CAGRStartDate != nil {
		if t, err := time.Parse(dateOnly, *a.CAGRStartDate); err == nil {
			out.CAGRStartDate = &t
		}
	}
	if len(a.SymbolSettings) > 0 {
		out.SymbolSettings = make(map[string]domain.SymbolSetting, len(a.SymbolSettings))
		for sym, ss := range a.SymbolSettings {
			out.SymbolSettings[sym] = domain.SymbolSetting{TargetProportion: ss.TargetProportion, Notes: ss.Notes}
		}
	}
	for _, m := range a.InvestmentModels {
		cfg := domain.InvestmentModelConfig{
			Model: m.Model, Symbol: m.Symbol,
			LeveragedSymbol: m.LeveragedSymbol, ReserveSymbol: m.ReserveSymbol,
			RebalancePeriod: m.RebalancePeriod,
		}
		if m.LastRebalance != nil {
			if t, err := time.Parse(dateOnly, *m.LastRebalance); err == nil {
				cfg.LastRebalance = &t
			}
		}
		out.InvestmentModels = append(out.InvestmentModels, cfg)
	}
	return out
}

// Accounts implements domain.ConfigStore.
func (s *FileConfigStore) Accounts() ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.ensureLoaded()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Account, 0, len(doc.Accounts))
	for _, a := range doc.Accounts {
		out = append(out, toDomainAccount(a))
	}
	return out, nil
}

// AccountGroups implements domain.ConfigStore.
func (s *FileConfigStore) AccountGroups() ([]domain.AccountGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.ensureLoaded()
	if err != nil {
		return nil, err
	}
	parentOf := make(map[string]string, len(doc.Groups))
	for _, g := range doc.Groups {
		parentOf[g.ID] = g.ParentID
	}
	out := make([]domain.AccountGroup, 0, len(doc.Groups))
	for _, g := range doc.Groups {
		// A group whose parent chain leads back to itself is made a root.
		parentID, p := g.ParentID, g.ParentID
		for i := 0; p != "" && p != g.ID && i < len(doc.Groups); i++ {
			p = parentOf[p]
		}
		if p == g.ID {
			parentID = ""
		}
		out = append(out, domain.AccountGroup{ID: g.ID, Name: g.Name, ParentID: parentID})
	}
	return out, nil
}

// FindAccount implements domain.ConfigStore.
func (s *FileConfigStore) FindAccount(ref domain.AccountRef) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.ensureLoaded()
	if err != nil {
		return nil, err
	}
	for _, a := range doc.Accounts {
		if matchesRef(a, ref) {
			out := toDomainAccount(a)
			return &out, nil
		}
	}
	return nil, &domain.ConfigError{Code: domain.ConfigErrNotFound, Message: "no account matching " + ref.ID()}
}

// matchesRef implements spec §4.3's matching rule: by number/accountId, by
// (loginId, number), or by the suffix after the last ":" in either field.
func matchesRef(a fileAccount, ref domain.AccountRef) bool {
	num := accountNumberOf(a)
	if num == ref.AccountNumber && (a.LoginID == ref.LoginID || a.LoginID == "") {
		return true
	}
	if suffixAfterColon(num) == ref.AccountNumber {
		return true
	}
	return false
}

func suffixAfterColon(s string) string {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// mutate re-reads the file, applies fn to the in-memory document, rewrites
// it atomically, and invalidates the cache — the sequence spec §4.3
// prescribes for every mutation.
func (s *FileConfigStore) mutate(fn func(doc *fileDocument) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.ensureLoaded()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	if err := s.persist(doc); err != nil {
		return err
	}
	s.doc = doc
	s.cachedAt = statKey{}
	info, err := os.Stat(s.path)
	if err == nil {
		s.cachedAt = statKey{size: info.Size(), modTime: info.ModTime()}
	}
	return nil
}

func (s *FileConfigStore) persist(doc fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".accounts-config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp config file: %w", err)
	}
	return nil
}

// findMutable locates the fileAccount entry matching ref for in-place
// mutation, scanning by number (or accountId when number is absent) and by
// colon-suffix (spec §4.3). An entry keyed only by "id" is not matched.
func findMutable(doc *fileDocument, ref domain.AccountRef) (*fileAccount, error) {
	for i := range doc.Accounts {
		if matchesRef(doc.Accounts[i], ref) {
			return &doc.Accounts[i], nil
		}
	}
	return nil, &domain.ConfigError{Code: domain.ConfigErrNotFound, Message: "no account matching " + ref.ID()}
}

// SetTargetProportions implements domain.ConfigStore.
func (s *FileConfigStore) SetTargetProportions(ref domain.AccountRef, proportions map[string]float64) error {
	sum := 0.0
	for _, p := range proportions {
		sum += p
	}
	if sum > 100.0001 {
		return &domain.ConfigError{Code: domain.ConfigErrInvalidProportions, Message: fmt.Sprintf("proportions sum to %.4f, exceeds 100", sum)}
	}
	return s.mutate(func(doc *fileDocument) error {
		acc, err := findMutable(doc, ref)
		if err != nil {
			return err
		}
		if acc.SymbolSettings == nil {
			acc.SymbolSettings = map[string]fileSymbolSetting{}
		}
		for sym, pct := range proportions {
			ss := acc.SymbolSettings[sym]
			ss.TargetProportion = pct
			acc.SymbolSettings[sym] = ss
		}
		return nil
	})
}

// SetSymbolNotes implements domain.ConfigStore.
func (s *FileConfigStore) SetSymbolNotes(ref domain.AccountRef, symbol, note string) error {
	return s.mutate(func(doc *fileDocument) error {
		acc, err := findMutable(doc, ref)
		if err != nil {
			return err
		}
		if acc.SymbolSettings == nil {
			acc.SymbolSettings = map[string]fileSymbolSetting{}
		}
		ss := acc.SymbolSettings[symbol]
		ss.Notes = note
		acc.SymbolSettings[symbol] = ss
		return nil
	})
}

// SetPlanningContext implements domain.ConfigStore.
func (s *FileConfigStore) SetPlanningContext(ref domain.AccountRef, text string) error {
	return s.mutate(func(doc *fileDocument) error {
		acc, err := findMutable(doc, ref)
		if err != nil {
			return err
		}
		acc.PlanningContext = text
		return nil
	})
}

// MarkAccountRebalanced implements domain.ConfigStore, stamping the named
// model's lastRebalance date and returning it.
func (s *FileConfigStore) MarkAccountRebalanced(ref domain.AccountRef, model string, asOf time.Time) (time.Time, error) {
	stamped := asOf.UTC().Truncate(24 * time.Hour)
	err := s.mutate(func(doc *fileDocument) error {
		acc, err := findMutable(doc, ref)
		if err != nil {
			return err
		}
		for i := range acc.InvestmentModels {
			if acc.InvestmentModels[i].Model == model {
				s := stamped.Format(dateOnly)
				acc.InvestmentModels[i].LastRebalance = &s
				return nil
			}
		}
		return &domain.ConfigError{Code: domain.ConfigErrInvalidAccount, Message: "no investment model " + model + " on " + ref.ID()}
	})
	if err != nil {
		return time.Time{}, err
	}
	return stamped, nil
}
