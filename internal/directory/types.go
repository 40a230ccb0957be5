package directory

import (
	"net/url"
	"time"
)

// SearchGroup selects which filter bundle the backend applies to an
// address search. Exactly one group is active per query.
type SearchGroup string

const (
	GroupCustomer    SearchGroup = "customer"
	GroupContact     SearchGroup = "contact"
	GroupAddressLine SearchGroup = "addressLine"
)

// Valid reports whether g is one of the known search groups.
func (g SearchGroup) Valid() bool {
	switch g {
	case GroupCustomer, GroupContact, GroupAddressLine:
		return true
	}
	return false
}

// SortDirection is the ordering applied by the backend.
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// Toggle returns the opposite direction.
func (d SortDirection) Toggle() SortDirection {
	if d == SortDescending {
		return SortAscending
	}
	return SortDescending
}

// SearchQuery carries one address search request. Filters holds only the
// non-empty filter fields of the active group, keyed by their wire names.
type SearchQuery struct {
	Group    SearchGroup
	Filters  url.Values
	Page     int
	PageSize int
	Sort     string
	Dir      SortDirection
}

// Address is an address master record as returned by the search and
// detail endpoints.
type Address struct {
	Kdn       string    `json:"kdn"`
	Suchname  string    `json:"suchname"`
	Name1     string    `json:"name1"`
	Name2     string    `json:"name2"`
	Strasse   string    `json:"strasse"`
	Plz       string    `json:"plz"`
	Ort       string    `json:"ort"`
	Land      string    `json:"land"`
	Telefon   string    `json:"telefon"`
	Email     string    `json:"email"`
	Aktiv     bool      `json:"aktiv"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ResultPage is one server-side page of an address search. Items reflect
// the backend's sort, filter and page; "no results" is an empty page.
type ResultPage struct {
	Items      []Address `json:"items"`
	Total      int       `json:"total"`
	TotalPages int       `json:"totalPages"`
}

// AddressLine is a delivery or invoice address attached to an address
// master record.
type AddressLine struct {
	ID      int64  `json:"id"`
	Kdn     string `json:"kdn"`
	Typ     string `json:"typ"`
	Name1   string `json:"name1"`
	Strasse string `json:"strasse"`
	Plz     string `json:"plz"`
	Ort     string `json:"ort"`
	Land    string `json:"land"`
	Zusatz  string `json:"zusatz"`
}

// BankAccount is a bank connection of an address master record.
type BankAccount struct {
	ID       int64  `json:"id"`
	Kdn      string `json:"kdn"`
	IBAN     string `json:"iban"`
	BIC      string `json:"bic"`
	Bankname string `json:"bankname"`
	Inhaber  string `json:"inhaber"`
	Waehrung string `json:"waehrung"`
	Standard bool   `json:"standard"`
}

// Contact is a contact person attached to an address master record.
type Contact struct {
	ID        int64  `json:"id"`
	Kdn       string `json:"kdn"`
	Anrede    string `json:"anrede"`
	Vorname   string `json:"vorname"`
	Nachname  string `json:"nachname"`
	Abteilung string `json:"abteilung"`
	Telefon   string `json:"telefon"`
	Mobil     string `json:"mobil"`
	Email     string `json:"email"`
	TypID     int64  `json:"typId"`
}

// ContactType is an entry of the contact-type catalogue.
type ContactType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
