package admin

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"recurpay/internal/model"
	"recurpay/internal/recurring"
)

// Accounts and dictionaries are never created by the engine; operators seed
// them here before definitions can reference them.

type newAccount struct {
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

func (a *api) createAccount(w http.ResponseWriter, r *http.Request) {
	var in newAccount
	if !decode(w, r, &in) {
		return
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		a.fail(w, &recurring.ValidationError{Field: "name", Reason: "required"})
		return
	}
	acct := model.Account{
		ID:                 uuid.New(),
		Name:               name,
		Balance:            in.Balance,
		TurnoverEndBalance: in.Balance,
	}
	if err := a.deps.Store.InsertAccount(r.Context(), acct); err != nil {
		a.fail(w, err)
		return
	}
	created, err := a.deps.Store.GetAccount(r.Context(), acct.ID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type dictionaryEntry struct {
	ID         uuid.UUID     `json:"id"`
	Name       string        `json:"name"`
	CategoryID uuid.NullUUID `json:"category_id"`
}

func (a *api) createCategory(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &in) {
		return
	}
	e := dictionaryEntry{ID: uuid.New(), Name: strings.TrimSpace(in.Name)}
	if e.Name == "" {
		a.fail(w, &recurring.ValidationError{Field: "name", Reason: "required"})
		return
	}
	if err := a.deps.Store.InsertCategory(r.Context(), e.ID, e.Name); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (a *api) createSubcategory(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name       string        `json:"name"`
		CategoryID uuid.NullUUID `json:"category_id"`
	}
	if !decode(w, r, &in) {
		return
	}
	e := dictionaryEntry{ID: uuid.New(), Name: strings.TrimSpace(in.Name), CategoryID: in.CategoryID}
	if e.Name == "" {
		a.fail(w, &recurring.ValidationError{Field: "name", Reason: "required"})
		return
	}
	if err := a.deps.Store.InsertSubcategory(r.Context(), e.ID, e.CategoryID, e.Name); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}
