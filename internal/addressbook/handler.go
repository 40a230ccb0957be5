package addressbook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/hugwawi/hugwawi-admin/internal/contacttypes"
	"github.com/hugwawi/hugwawi-admin/internal/directory"
	"github.com/hugwawi/hugwawi-admin/internal/platform/httpx"
	"github.com/hugwawi/hugwawi-admin/internal/searchlist"
	"github.com/hugwawi/hugwawi-admin/internal/shared"
	"github.com/hugwawi/hugwawi-admin/internal/view"
)

const searchPath = "/addresses"

// Handler wires the HTTP endpoints of the address screens: the search
// list and the detail dialogs for addresses, address lines, bank
// accounts and contact persons.
type Handler struct {
	logger       *slog.Logger
	dir          *directory.Client
	registry     *searchlist.Registry
	contactTypes *contacttypes.Cache
	templates    *view.Engine
	csrf         *shared.CSRFManager
	validate     *validator.Validate
}

// NewHandler constructs the address-book handler.
func NewHandler(logger *slog.Logger, dir *directory.Client, registry *searchlist.Registry, contactTypes *contacttypes.Cache, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:       logger,
		dir:          dir,
		registry:     registry,
		contactTypes: contactTypes,
		templates:    templates,
		csrf:         csrf,
		validate:     newValidator(),
	}
}

// MountRoutes registers the address-book routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showSearch)
	r.Post("/group", h.handleSelectGroup)
	r.Post("/search", h.handleSearch)
	r.Post("/sort", h.handleSort)
	r.Post("/page", h.handlePage)
	r.Post("/reset", h.handleReset)
	r.Post("/columns", h.handleColumnFilters)
	r.Get("/results.json", h.handleResultsJSON)
	r.Get("/export.csv", h.handleExportCSV)

	r.Route("/{kdn}", func(r chi.Router) {
		r.Get("/", h.showAddress)
		r.Post("/", h.handleSaveAddress)
		r.Get("/lines/{lineID}", h.showAddressLine)
		r.Post("/lines/{lineID}", h.handleSaveAddressLine)
		r.Get("/bank-accounts/{accountID}", h.showBankAccount)
		r.Post("/bank-accounts/{accountID}", h.handleSaveBankAccount)
		r.Get("/contacts/{contactID}", h.showContact)
		r.Post("/contacts/{contactID}", h.handleSaveContact)
	})
}

// controller returns the search controller of the current session.
func (h *Handler) controller(r *http.Request) *searchlist.Controller {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return nil
	}
	return h.registry.Get(sess.ID)
}

// ==== SEARCH SCREEN ====

type searchPageData struct {
	Snap         searchlist.Snapshot
	ContactTypes []directory.ContactType
	Columns      []searchlist.Column
	Pager        shared.Pagination
}

func (h *Handler) showSearch(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	if ctrl == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	snap := ctrl.Snapshot()
	data := searchPageData{
		Snap:         snap,
		ContactTypes: h.contactTypes.Get(r.Context()),
		Columns:      searchlist.Columns,
		Pager:        shared.Pagination{Page: snap.Page, PerPage: snap.PageSize, Total: snap.Total, TotalPages: snap.TotalPages},
	}
	h.render(w, r, "pages/addresses_search.html", "Adresssuche", data, http.StatusOK)
}

func (h *Handler) handleSelectGroup(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.searchForm(w, r)
	if !ok {
		return
	}
	group := directory.SearchGroup(r.PostFormValue("group"))
	if err := ctrl.SelectGroup(group); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, searchPath, http.StatusSeeOther)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.searchForm(w, r)
	if !ok {
		return
	}
	group := directory.SearchGroup(r.PostFormValue("group"))
	if !group.Valid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	switch group {
	case directory.GroupContact:
		typID, _ := strconv.Atoi(r.PostFormValue("typId"))
		ctrl.SetContactFilter(searchlist.ContactFilter{
			Nachname: r.PostFormValue("nachname"),
			Vorname:  r.PostFormValue("vorname"),
			Email:    r.PostFormValue("email"),
			TypID:    typID,
		})
	case directory.GroupAddressLine:
		ctrl.SetAddressLineFilter(searchlist.AddressLineFilter{
			Strasse: r.PostFormValue("strasse"),
			Plz:     r.PostFormValue("plz"),
			Ort:     r.PostFormValue("ort"),
			Land:    r.PostFormValue("land"),
		})
	default:
		ctrl.SetCustomerFilter(searchlist.CustomerFilter{
			Suchname:  r.PostFormValue("suchname"),
			Kdn:       r.PostFormValue("kdn"),
			Plz:       r.PostFormValue("plz"),
			Ort:       r.PostFormValue("ort"),
			AktivOnly: r.PostFormValue("aktiv") == "1",
		})
	}

	if err := ctrl.SelectGroup(group); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	// Empty filters and load failures are flagged in the controller
	// state and rendered on the redirected GET.
	if err := ctrl.Search(r.Context()); err != nil && !errors.Is(err, searchlist.ErrEmptyFilter) {
		h.logger.Warn("search failed", "group", group, "error", err)
	}
	http.Redirect(w, r, searchPath, http.StatusSeeOther)
}

func (h *Handler) handleSort(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.searchForm(w, r)
	if !ok {
		return
	}
	field := r.PostFormValue("field")
	if !knownColumn(field) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := ctrl.Sort(r.Context(), field); err != nil {
		h.logger.Warn("sort failed", "field", field, "error", err)
	}
	http.Redirect(w, r, searchPath, http.StatusSeeOther)
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.searchForm(w, r)
	if !ok {
		return
	}
	page, err := strconv.Atoi(r.PostFormValue("page"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := ctrl.SetPage(r.Context(), page); err != nil {
		h.logger.Warn("page change failed", "page", page, "error", err)
	}
	http.Redirect(w, r, searchPath, http.StatusSeeOther)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.searchForm(w, r)
	if !ok {
		return
	}
	ctrl.Reset()
	http.Redirect(w, r, searchPath, http.StatusSeeOther)
}

func (h *Handler) handleColumnFilters(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.searchForm(w, r)
	if !ok {
		return
	}
	filters := searchlist.ColumnFilterSet{}
	for _, col := range searchlist.Columns {
		if v := r.PostFormValue("filter_" + string(col)); v != "" {
			filters[col] = v
		}
	}
	ctrl.SetColumnFilters(filters)
	http.Redirect(w, r, searchPath, http.StatusSeeOther)
}

type searchResultsResponse struct {
	Group              string              `json:"group"`
	Page               int                 `json:"page"`
	PageSize           int                 `json:"pageSize"`
	Total              int                 `json:"total"`
	TotalPages         int                 `json:"totalPages"`
	Sort               string              `json:"sort"`
	Dir                string              `json:"dir"`
	SearchExecuted     bool                `json:"searchExecuted"`
	EmptyFilterWarning bool                `json:"emptyFilterWarning"`
	LoadFailed         bool                `json:"loadFailed"`
	Items              []directory.Address `json:"items"`
}

// handleResultsJSON exposes the visible rows of the current screen
// state, e.g. for the auto-refreshing result table.
func (h *Handler) handleResultsJSON(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	if ctrl == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "session unavailable")
		return
	}
	snap := ctrl.Snapshot()
	httpx.JSON(w, http.StatusOK, searchResultsResponse{
		Group:              string(snap.Group),
		Page:               snap.Page,
		PageSize:           snap.PageSize,
		Total:              snap.Total,
		TotalPages:         snap.TotalPages,
		Sort:               snap.SortField,
		Dir:                string(snap.SortDir),
		SearchExecuted:     snap.SearchExecuted,
		EmptyFilterWarning: snap.EmptyFilterWarning,
		LoadFailed:         snap.LoadFailed,
		Items:              snap.Visible,
	})
}

// searchForm parses the form and fetches the session controller for
// the search screen's POST endpoints.
func (h *Handler) searchForm(w http.ResponseWriter, r *http.Request) (*searchlist.Controller, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return nil, false
	}
	ctrl := h.controller(r)
	if ctrl == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}
	return ctrl, true
}

func knownColumn(field string) bool {
	for _, col := range searchlist.Columns {
		if string(col) == field {
			return true
		}
	}
	return false
}

// ==== ADDRESS DETAIL ====

type addressDetail struct {
	Address      *directory.Address
	Lines        []directory.AddressLine
	BankAccounts []directory.BankAccount
	Contacts     []directory.Contact
}

type addressPageData struct {
	Detail    addressDetail
	TypeNames map[int64]string
	Form      addressForm
	Errors    map[string]string
}

func (h *Handler) showAddress(w http.ResponseWriter, r *http.Request) {
	kdn := kdnParam(r)
	detail, err := h.loadAddressDetail(r.Context(), kdn)
	if err != nil {
		h.renderLoadError(w, r, err)
		return
	}
	a := detail.Address
	form := addressForm{
		Suchname: a.Suchname,
		Name1:    a.Name1,
		Name2:    a.Name2,
		Strasse:  a.Strasse,
		Plz:      a.Plz,
		Ort:      a.Ort,
		Land:     a.Land,
		Telefon:  a.Telefon,
		Email:    a.Email,
		Aktiv:    a.Aktiv,
	}
	data := addressPageData{
		Detail:    detail,
		TypeNames: h.typeNames(r.Context()),
		Form:      form,
		Errors:    map[string]string{},
	}
	h.render(w, r, "pages/address_detail.html", "Adresse "+a.Kdn, data, http.StatusOK)
}

func (h *Handler) handleSaveAddress(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	kdn := kdnParam(r)
	form := parseAddressForm(r)
	errs := formErrors(h.validate.Struct(form))
	if len(errs) == 0 {
		h.redirectSaved(w, r)
		return
	}
	detail, err := h.loadAddressDetail(r.Context(), kdn)
	if err != nil {
		h.renderLoadError(w, r, err)
		return
	}
	data := addressPageData{
		Detail:    detail,
		TypeNames: h.typeNames(r.Context()),
		Form:      form,
		Errors:    errs,
	}
	h.render(w, r, "pages/address_detail.html", "Adresse "+kdn, data, http.StatusBadRequest)
}

func (h *Handler) loadAddressDetail(ctx context.Context, kdn string) (addressDetail, error) {
	var detail addressDetail
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		address, err := h.dir.GetAddress(ctx, kdn)
		if err != nil {
			return err
		}
		detail.Address = address
		return nil
	})
	g.Go(func() error {
		lines, err := h.dir.ListAddressLines(ctx, kdn)
		if err != nil {
			return err
		}
		detail.Lines = lines
		return nil
	})
	g.Go(func() error {
		accounts, err := h.dir.ListBankAccounts(ctx, kdn)
		if err != nil {
			return err
		}
		detail.BankAccounts = accounts
		return nil
	})
	g.Go(func() error {
		contacts, err := h.dir.ListContacts(ctx, kdn)
		if err != nil {
			return err
		}
		detail.Contacts = contacts
		return nil
	})

	if err := g.Wait(); err != nil {
		return addressDetail{}, err
	}
	return detail, nil
}

// ==== ADDRESS LINE DETAIL ====

type addressLinePageData struct {
	Address *directory.Address
	Line    *directory.AddressLine
	Form    addressLineForm
	Errors  map[string]string
}

func (h *Handler) showAddressLine(w http.ResponseWriter, r *http.Request) {
	kdn := kdnParam(r)
	lineID, ok := idParam(r, "lineID")
	if !ok {
		h.renderLoadError(w, r, directory.ErrNotFound)
		return
	}
	address, line, err := h.loadAddressLine(r.Context(), kdn, lineID)
	if err != nil {
		h.renderLoadError(w, r, err)
		return
	}
	form := addressLineForm{
		Typ:     line.Typ,
		Name1:   line.Name1,
		Strasse: line.Strasse,
		Plz:     line.Plz,
		Ort:     line.Ort,
		Land:    line.Land,
		Zusatz:  line.Zusatz,
	}
	data := addressLinePageData{Address: address, Line: line, Form: form, Errors: map[string]string{}}
	h.render(w, r, "pages/address_line_detail.html", "Adresszeile", data, http.StatusOK)
}

func (h *Handler) handleSaveAddressLine(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	kdn := kdnParam(r)
	lineID, ok := idParam(r, "lineID")
	if !ok {
		h.renderLoadError(w, r, directory.ErrNotFound)
		return
	}
	form := parseAddressLineForm(r)
	errs := formErrors(h.validate.Struct(form))
	if len(errs) == 0 {
		h.redirectSaved(w, r)
		return
	}
	address, line, err := h.loadAddressLine(r.Context(), kdn, lineID)
	if err != nil {
		h.renderLoadError(w, r, err)
		return
	}
	data := addressLinePageData{Address: address, Line: line, Form: form, Errors: errs}
	h.render(w, r, "pages/address_line_detail.html", "Adresszeile", data, http.StatusBadRequest)
}

func (h *Handler) loadAddressLine(ctx context.Context, kdn string, lineID int64) (*directory.Address, *directory.AddressLine, error) {
	var (
		address *directory.Address
		line    *directory.AddressLine
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := h.dir.GetAddress(ctx, kdn)
		if err != nil {
			return err
		}
		address = a
		return nil
	})
	g.Go(func() error {
		l, err := h.dir.GetAddressLine(ctx, kdn, lineID)
		if err != nil {
			return err
		}
		line = l
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return address, line, nil
}

// ==== BANK ACCOUNT DETAIL ====

type bankAccountPageData struct {
	Address *directory.Address
	Account *directory.BankAccount
	Form    bankAccountForm
	Errors  map[string]string
}

func (h *Handler) showBankAccount(w http.ResponseWriter, r *http.Request) {
	kdn := kdnParam(r)
	accountID, ok := idParam(r, "accountID")
	if !ok {
		h.renderLoadError(w, r, directory.ErrNotFound)
		return
	}
	address, account, err := h.loadBankAccount(r.Context(), kdn, accountID)
	if err != nil {
		h.renderLoadError(w, r, err)
		return
	}
	form := bankAccountForm{
		IBAN:     account.IBAN,
		BIC:      account.BIC,
		Bankname: account.Bankname,
		Inhaber:  account.Inhaber,
		Waehrung: account.Waehrung,
		Standard: account.Standard,
	}
	data := bankAccountPageData{Address: address, Account: account, Form: form, Errors: map[string]string{}}
	h.render(w, r, "pages/bank_account_detail.html", "Bankverbindung", data, http.StatusOK)
}

func (h *Handler) handleSaveBankAccount(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	kdn := kdnParam(r)
	accountID, ok := idParam(r, "accountID")
	if !ok {
		h.renderLoadError(w, r, directory.ErrNotFound)
		return
	}
	form := parseBankAccountForm(r)
	errs := formErrors(h.validate.Struct(form))
	if len(errs) == 0 {
		h.redirectSaved(w, r)
		return
	}
	address, account, err := h.loadBankAccount(r.Context(), kdn, accountID)
	if err != nil {
		h.renderLoadError(w, r, err)
		return
	}
	data := bankAccountPageData{Address: address, Account: account, Form: form, Errors: errs}
	h.render(w, r, "pages/bank_account_detail.html", "Bankverbindung", data, http.StatusBadRequest)
}

func (h *Handler) loadBankAccount(ctx context.Context, kdn string, accountID int64) (*directory.Address, *directory.BankAccount, error) {
	var (
		address *directory.Address
		account *directory.BankAccount
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := h.dir.GetAddress(ctx, kdn)
		if err != nil {
			return err
		}
		address = a
		return nil
	})
	g.Go(func() error {
		acc, err := h.dir.GetBankAccount(ctx, kdn, accountID)
		if err != nil {
			return err
		}
		account = acc
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return address, account, nil
}

// ==== CONTACT DETAIL ====

type contactPageData struct {
	Address      *directory.Address
	Contact      *directory.Contact
	ContactTypes []directory.ContactType
	Form         contactForm
	Errors       map[string]string
}

func (h *Handler) showContact(w http.ResponseWriter, r *http.Request) {
	kdn := kdnParam(r)
	contactID, ok := idParam(r, "contactID")
	if !ok {
		h.renderLoadError(w, r, directory.ErrNotFound)
		return
	}
	address, contact, err := h.loadContact(r.Context(), kdn, contactID)
	if err != nil {
		h.renderLoadError(w, r, err)
		return
	}
	form := contactForm{
		Anrede:    contact.Anrede,
		Vorname:   contact.Vorname,
		Nachname:  contact.Nachname,
		Abteilung: contact.Abteilung,
		Telefon:   contact.Telefon,
		Mobil:     contact.Mobil,
		Email:     contact.Email,
		TypID:     int(contact.TypID),
	}
	data := contactPageData{
		Address:      address,
		Contact:      contact,
		ContactTypes: h.contactTypes.Get(r.Context()),
		Form:         form,
		Errors:       map[string]string{},
	}
	h.render(w, r, "pages/contact_detail.html", "Ansprechpartner", data, http.StatusOK)
}

func (h *Handler) handleSaveContact(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	kdn := kdnParam(r)
	contactID, ok := idParam(r, "contactID")
	if !ok {
		h.renderLoadError(w, r, directory.ErrNotFound)
		return
	}
	form := parseContactForm(r)
	errs := formErrors(h.validate.Struct(form))
	if len(errs) == 0 {
		h.redirectSaved(w, r)
		return
	}
	address, contact, err := h.loadContact(r.Context(), kdn, contactID)
	if err != nil {
		h.renderLoadError(w, r, err)
		return
	}
	data := contactPageData{
		Address:      address,
		Contact:      contact,
		ContactTypes: h.contactTypes.Get(r.Context()),
		Form:         form,
		Errors:       errs,
	}
	h.render(w, r, "pages/contact_detail.html", "Ansprechpartner", data, http.StatusBadRequest)
}

func (h *Handler) loadContact(ctx context.Context, kdn string, contactID int64) (*directory.Address, *directory.Contact, error) {
	var (
		address *directory.Address
		contact *directory.Contact
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := h.dir.GetAddress(ctx, kdn)
		if err != nil {
			return err
		}
		address = a
		return nil
	})
	g.Go(func() error {
		c, err := h.dir.GetContact(ctx, kdn, contactID)
		if err != nil {
			return err
		}
		contact = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return address, contact, nil
}

// ==== HELPERS ====

type errorPageData struct {
	Message string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", "error", err, "template", template)
	}
}

func (h *Handler) renderLoadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, directory.ErrNotFound) {
		h.render(w, r, "pages/not_found.html", "Nicht gefunden", nil, http.StatusNotFound)
		return
	}
	h.logger.Error("load record failed", "path", r.URL.Path, "error", err)
	status := http.StatusInternalServerError
	message := shared.UserSafeMessage(err)
	var queryErr *directory.QueryError
	if errors.As(err, &queryErr) {
		status = http.StatusBadGateway
		message = "Die HUGWAWI-Datenbank ist zurzeit nicht erreichbar. Bitte versuchen Sie es später erneut."
	}
	h.render(w, r, "pages/error.html", "Fehler", errorPageData{Message: message}, status)
}

// redirectSaved acknowledges a valid save. The write endpoints of the
// backend are not wired yet, the dialogs only validate.
func (h *Handler) redirectSaved(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "info", Message: "Geprüft. Die Übernahme nach HUGWAWI erfolgt mit der Schreibanbindung."})
	}
	http.Redirect(w, r, r.URL.EscapedPath(), http.StatusSeeOther)
}

// typeNames maps contact type IDs to display names.
func (h *Handler) typeNames(ctx context.Context) map[int64]string {
	types := h.contactTypes.Get(ctx)
	names := make(map[int64]string, len(types))
	for _, t := range types {
		names[t.ID] = t.Name
	}
	return names
}

func kdnParam(r *http.Request) string {
	raw := chi.URLParam(r, "kdn")
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
