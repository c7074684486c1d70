// Package aggregator implements C9: the coarse HTTP-facing boundary that
// resolves an account selector to one or more accounts, fans out broker
// calls per account in parallel, and joins the results into a single
// response, degrading individual accounts on error rather than failing
// the whole request (spec §6).
package aggregator

import (
	"fmt"
	"strings"

	"github.com/aristath/questrade-sentinel/internal/domain"
)

// ResolveAccounts expands a selector into the concrete accounts it names.
// Supported forms (spec §6):
//   - a bare account number or "login:number" — a single account
//   - "group:<name>" — every account in that group, including nested
//     subgroups
//   - "all" — every configured account
//   - "default" — the first configured account, for single-account setups
func ResolveAccounts(store domain.ConfigStore, selector string) ([]domain.Account, error) {
	switch {
	case selector == "" || selector == "default":
		accounts, err := store.Accounts()
		if err != nil {
			return nil, err
		}
		if len(accounts) == 0 {
			return nil, fmt.Errorf("aggregator: no accounts configured")
		}
		return accounts[:1], nil

	case selector == "all":
		return store.Accounts()

	case strings.HasPrefix(selector, "group:"):
		return resolveGroup(store, strings.TrimPrefix(selector, "group:"))

	default:
		ref := parseRef(selector)
		acct, err := store.FindAccount(ref)
		if err != nil {
			return nil, err
		}
		return []domain.Account{*acct}, nil
	}
}

// parseRef splits a "login:number" selector, or treats the whole string as
// an account number when no colon is present (domain.ConfigStore's
// FindAccount already tolerates a blank LoginID by matching on number alone).
func parseRef(selector string) domain.AccountRef {
	if idx := strings.LastIndex(selector, ":"); idx >= 0 {
		return domain.AccountRef{LoginID: selector[:idx], AccountNumber: selector[idx+1:]}
	}
	return domain.AccountRef{AccountNumber: selector}
}

// resolveGroup collects every account belonging to the named group or any
// of its descendant groups. A group hierarchy with a cycle is treated as
// flat (cycle detection lives in internal/config; this walk just guards
// against infinite recursion defensively).
func resolveGroup(store domain.ConfigStore, name string) ([]domain.Account, error) {
	groups, err := store.AccountGroups()
	if err != nil {
		return nil, err
	}
	accounts, err := store.Accounts()
	if err != nil {
		return nil, err
	}

	var root *domain.AccountGroup
	byParent := map[string][]domain.AccountGroup{}
	for i := range groups {
		g := groups[i]
		if strings.EqualFold(g.Name, name) {
			root = &g
		}
		byParent[g.ParentID] = append(byParent[g.ParentID], g)
	}
	if root == nil {
		return nil, &domain.ConfigError{Code: domain.ConfigErrInvalidAccount, Message: fmt.Sprintf("unknown account group %q", name)}
	}

	memberGroups := map[string]bool{root.Name: true}
	queue := []string{root.ID}
	visited := map[string]bool{root.ID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range byParent[id] {
			memberGroups[child.Name] = true
			if !visited[child.ID] {
				visited[child.ID] = true
				queue = append(queue, child.ID)
			}
		}
	}

	var out []domain.Account
	for _, a := range accounts {
		if memberGroups[a.GroupName] {
			out = append(out, a)
		}
	}
	return out, nil
}
