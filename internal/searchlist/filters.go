package searchlist

import (
	"net/url"
	"strconv"
	"strings"
)

// Filter is one search group's form values. Values carries only the
// non-empty fields so the backend never sees blank parameters.
type Filter interface {
	Empty() bool
	Values() url.Values
}

// CustomerFilter searches the address master data of customers.
type CustomerFilter struct {
	Suchname  string
	Kdn       string
	Plz       string
	Ort       string
	AktivOnly bool
}

// Empty reports whether no searchable text field is set. The
// active-only checkbox alone is not a usable search criterion.
func (f CustomerFilter) Empty() bool {
	return allBlank(f.Suchname, f.Kdn, f.Plz, f.Ort)
}

func (f CustomerFilter) Values() url.Values {
	v := url.Values{}
	setNonEmpty(v, "suchname", f.Suchname)
	setNonEmpty(v, "kdn", f.Kdn)
	setNonEmpty(v, "plz", f.Plz)
	setNonEmpty(v, "ort", f.Ort)
	if f.AktivOnly {
		v.Set("aktiv", "1")
	}
	return v
}

// ContactFilter searches contact persons across all addresses.
type ContactFilter struct {
	Nachname string
	Vorname  string
	Email    string
	TypID    int
}

func (f ContactFilter) Empty() bool {
	return allBlank(f.Nachname, f.Vorname, f.Email) && f.TypID <= 0
}

func (f ContactFilter) Values() url.Values {
	v := url.Values{}
	setNonEmpty(v, "nachname", f.Nachname)
	setNonEmpty(v, "vorname", f.Vorname)
	setNonEmpty(v, "email", f.Email)
	if f.TypID > 0 {
		v.Set("typId", strconv.Itoa(f.TypID))
	}
	return v
}

// AddressLineFilter searches delivery and billing address lines.
type AddressLineFilter struct {
	Strasse string
	Plz     string
	Ort     string
	Land    string
}

func (f AddressLineFilter) Empty() bool {
	return allBlank(f.Strasse, f.Plz, f.Ort, f.Land)
}

func (f AddressLineFilter) Values() url.Values {
	v := url.Values{}
	setNonEmpty(v, "strasse", f.Strasse)
	setNonEmpty(v, "plz", f.Plz)
	setNonEmpty(v, "ort", f.Ort)
	setNonEmpty(v, "land", f.Land)
	return v
}

var (
	_ Filter = CustomerFilter{}
	_ Filter = ContactFilter{}
	_ Filter = AddressLineFilter{}
)

func allBlank(fields ...string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func setNonEmpty(v url.Values, key, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		v.Set(key, trimmed)
	}
}
