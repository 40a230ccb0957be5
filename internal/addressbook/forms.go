package addressbook

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Edit forms of the detail dialogs. Saving is validated but not yet
// persisted; the backend write endpoints are planned for a later
// expansion stage.

type addressForm struct {
	Suchname string `validate:"required,max=50"`
	Name1    string `validate:"required,max=100"`
	Name2    string `validate:"max=100"`
	Strasse  string `validate:"max=100"`
	Plz      string `validate:"max=10"`
	Ort      string `validate:"max=50"`
	Land     string `validate:"omitempty,iso3166_1_alpha2"`
	Telefon  string `validate:"max=30"`
	Email    string `validate:"omitempty,email"`
	Aktiv    bool
}

type addressLineForm struct {
	Typ     string `validate:"required,oneof=liefer rechnung besuch"`
	Name1   string `validate:"required,max=100"`
	Strasse string `validate:"required,max=100"`
	Plz     string `validate:"required,max=10"`
	Ort     string `validate:"required,max=50"`
	Land    string `validate:"omitempty,iso3166_1_alpha2"`
	Zusatz  string `validate:"max=100"`
}

type bankAccountForm struct {
	IBAN     string `validate:"required,iban"`
	BIC      string `validate:"omitempty,bic"`
	Bankname string `validate:"max=100"`
	Inhaber  string `validate:"required,max=100"`
	Waehrung string `validate:"omitempty,iso4217"`
	Standard bool
}

type contactForm struct {
	Anrede    string `validate:"max=20"`
	Vorname   string `validate:"max=50"`
	Nachname  string `validate:"required,max=50"`
	Abteilung string `validate:"max=50"`
	Telefon   string `validate:"max=30"`
	Mobil     string `validate:"max=30"`
	Email     string `validate:"omitempty,email"`
	TypID     int    `validate:"min=0"`
}

// newValidator builds the validator used by all detail forms and
// registers the IBAN check.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("iban", validIBAN)
	return v
}

var ibanLengths = map[string]int{
	"AT": 20, "BE": 16, "CH": 21, "CZ": 24, "DE": 22, "DK": 18,
	"ES": 24, "FR": 27, "GB": 22, "HU": 28, "IT": 27, "LI": 21,
	"LU": 20, "NL": 18, "PL": 28, "SI": 19, "SK": 24,
}

// validIBAN checks country prefix, length and the ISO 13616 mod-97
// checksum.
func validIBAN(fl validator.FieldLevel) bool {
	iban := strings.ToUpper(strings.ReplaceAll(fl.Field().String(), " ", ""))
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	country := iban[:2]
	for _, r := range country {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	if want, ok := ibanLengths[country]; ok && len(iban) != want {
		return false
	}

	// Move the country code and check digits to the end, then map
	// letters to numbers (A=10 .. Z=35) and take the value mod 97.
	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			digits.WriteString(strconv.Itoa(int(r-'A') + 10))
		default:
			return false
		}
	}

	value, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(value, big.NewInt(97)).Int64() == 1
}

func parseAddressForm(r *http.Request) addressForm {
	return addressForm{
		Suchname: strings.TrimSpace(r.PostFormValue("suchname")),
		Name1:    strings.TrimSpace(r.PostFormValue("name1")),
		Name2:    strings.TrimSpace(r.PostFormValue("name2")),
		Strasse:  strings.TrimSpace(r.PostFormValue("strasse")),
		Plz:      strings.TrimSpace(r.PostFormValue("plz")),
		Ort:      strings.TrimSpace(r.PostFormValue("ort")),
		Land:     strings.ToUpper(strings.TrimSpace(r.PostFormValue("land"))),
		Telefon:  strings.TrimSpace(r.PostFormValue("telefon")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Aktiv:    r.PostFormValue("aktiv") == "1",
	}
}

func parseAddressLineForm(r *http.Request) addressLineForm {
	return addressLineForm{
		Typ:     strings.TrimSpace(r.PostFormValue("typ")),
		Name1:   strings.TrimSpace(r.PostFormValue("name1")),
		Strasse: strings.TrimSpace(r.PostFormValue("strasse")),
		Plz:     strings.TrimSpace(r.PostFormValue("plz")),
		Ort:     strings.TrimSpace(r.PostFormValue("ort")),
		Land:    strings.ToUpper(strings.TrimSpace(r.PostFormValue("land"))),
		Zusatz:  strings.TrimSpace(r.PostFormValue("zusatz")),
	}
}

func parseBankAccountForm(r *http.Request) bankAccountForm {
	return bankAccountForm{
		IBAN:     strings.TrimSpace(r.PostFormValue("iban")),
		BIC:      strings.ToUpper(strings.TrimSpace(r.PostFormValue("bic"))),
		Bankname: strings.TrimSpace(r.PostFormValue("bankname")),
		Inhaber:  strings.TrimSpace(r.PostFormValue("inhaber")),
		Waehrung: strings.ToUpper(strings.TrimSpace(r.PostFormValue("waehrung"))),
		Standard: r.PostFormValue("standard") == "1",
	}
}

func parseContactForm(r *http.Request) contactForm {
	typID, _ := strconv.Atoi(r.PostFormValue("typId"))
	if typID < 0 {
		typID = 0
	}
	return contactForm{
		Anrede:    strings.TrimSpace(r.PostFormValue("anrede")),
		Vorname:   strings.TrimSpace(r.PostFormValue("vorname")),
		Nachname:  strings.TrimSpace(r.PostFormValue("nachname")),
		Abteilung: strings.TrimSpace(r.PostFormValue("abteilung")),
		Telefon:   strings.TrimSpace(r.PostFormValue("telefon")),
		Mobil:     strings.TrimSpace(r.PostFormValue("mobil")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		TypID:     typID,
	}
}

// formErrors turns validator errors into field messages for the
// templates.
func formErrors(err error) map[string]string {
	errors := make(map[string]string)
	if err == nil {
		return errors
	}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errors["general"] = "Die Eingaben konnten nicht geprüft werden."
		return errors
	}
	for _, fieldErr := range validationErrs {
		errors[fieldErr.Field()] = fieldMessage(fieldErr)
	}
	return errors
}

func fieldMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "Pflichtfeld."
	case "max":
		return "Höchstens " + err.Param() + " Zeichen."
	case "min":
		return "Ungültiger Wert."
	case "email":
		return "Keine gültige E-Mail-Adresse."
	case "iban":
		return "Keine gültige IBAN."
	case "bic":
		return "Kein gültiger BIC."
	case "iso3166_1_alpha2":
		return "Ländercode bitte zweistellig angeben, z. B. AT."
	case "iso4217":
		return "Kein gültiger Währungscode."
	case "oneof":
		return "Ungültige Auswahl."
	default:
		return "Ungültige Eingabe."
	}
}
