package searchlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hugwawi/hugwawi-admin/internal/directory"
	"github.com/hugwawi/hugwawi-admin/internal/observability"
)

// PageSize is the fixed number of records requested per page.
const PageSize = 500

// ErrEmptyFilter is returned by Search when the active group has no
// usable filter value. The backend is not contacted in that case.
var ErrEmptyFilter = errors.New("searchlist: no filter values provided")

// Directory is the slice of the backend the search screen depends on.
type Directory interface {
	SearchAddresses(ctx context.Context, query directory.SearchQuery) (*directory.ResultPage, error)
}

// Controller owns the state of one address search screen: the active
// search group, the per-group filters, pagination and sort parameters,
// the loaded result page and the client-side column filters.
//
// Overlapping loads are serialized by an epoch counter. Every load
// captures the epoch it was started under and a response is applied
// only while that epoch is still current, so the last load STARTED
// wins, regardless of the order in which responses arrive.
type Controller struct {
	dir Directory
	log *slog.Logger

	mu             sync.Mutex
	group          directory.SearchGroup
	customer       CustomerFilter
	contact        ContactFilter
	addressLine    AddressLineFilter
	columns        ColumnFilterSet
	page           int
	sortField      string
	sortDir        directory.SortDirection
	searchExecuted bool
	emptyWarning   bool
	loading        bool
	loadFailed     bool
	items          []directory.Address
	total          int
	totalPages     int
	epoch          uint64
}

// Snapshot is an immutable copy of the controller state for rendering.
type Snapshot struct {
	Group              directory.SearchGroup
	Customer           CustomerFilter
	Contact            ContactFilter
	AddressLine        AddressLineFilter
	ColumnFilters      ColumnFilterSet
	Page               int
	PageSize           int
	SortField          string
	SortDir            directory.SortDirection
	SearchExecuted     bool
	EmptyFilterWarning bool
	Loading            bool
	LoadFailed         bool
	Items              []directory.Address
	Visible            []directory.Address
	Total              int
	TotalPages         int
	Epoch              uint64
}

// NewController builds a controller in its initial state: customer
// group active, first page, sorted by suchname ascending, no results.
func NewController(dir Directory, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		dir:        dir,
		log:        log,
		group:      directory.GroupCustomer,
		columns:    ColumnFilterSet{},
		page:       1,
		sortField:  string(ColumnSuchname),
		sortDir:    directory.SortAscending,
		items:      []directory.Address{},
		totalPages: 1,
	}
}

// SelectGroup switches the active search group. The other groups keep
// their filter values, and no search is triggered.
func (c *Controller) SelectGroup(group directory.SearchGroup) error {
	if !group.Valid() {
		return fmt.Errorf("searchlist: unknown search group %q", group)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.group = group
	return nil
}

// SetCustomerFilter replaces the customer group's filter values.
func (c *Controller) SetCustomerFilter(f CustomerFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customer = f
}

// SetContactFilter replaces the contact group's filter values.
func (c *Controller) SetContactFilter(f ContactFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contact = f
}

// SetAddressLineFilter replaces the address-line group's filter values.
func (c *Controller) SetAddressLineFilter(f AddressLineFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addressLine = f
}

// Search runs a fresh search on the active group, starting at page 1.
// When the active group's filter is empty it only raises the warning
// flag and returns ErrEmptyFilter; the loaded results are untouched.
func (c *Controller) Search(ctx context.Context) error {
	c.mu.Lock()
	if c.activeFilterLocked().Empty() {
		c.emptyWarning = true
		c.mu.Unlock()
		return ErrEmptyFilter
	}
	c.emptyWarning = false
	c.searchExecuted = true
	c.page = 1
	c.mu.Unlock()

	return c.load(ctx)
}

// Sort orders the result set by the given column. A repeated sort on
// the current column toggles the direction, a new column starts
// ascending. Sorting is server-side and re-fetches the current page.
// Before the first executed search this is a no-op.
func (c *Controller) Sort(ctx context.Context, field string) error {
	if !sortableField(field) {
		return fmt.Errorf("searchlist: unsupported sort field %q", field)
	}

	c.mu.Lock()
	if !c.searchExecuted {
		c.mu.Unlock()
		return nil
	}
	if c.sortField == field {
		c.sortDir = c.sortDir.Toggle()
	} else {
		c.sortField = field
		c.sortDir = directory.SortAscending
	}
	c.mu.Unlock()

	return c.load(ctx)
}

// SetPage jumps to another result page. The page is clamped to the
// known page range. Before the first executed search this is a no-op.
func (c *Controller) SetPage(ctx context.Context, page int) error {
	c.mu.Lock()
	if !c.searchExecuted {
		c.mu.Unlock()
		return nil
	}
	if page < 1 {
		page = 1
	}
	if c.totalPages > 0 && page > c.totalPages {
		page = c.totalPages
	}
	if page == c.page {
		c.mu.Unlock()
		return nil
	}
	c.page = page
	c.mu.Unlock()

	return c.load(ctx)
}

// Reset clears all filter sets, the column filters and the loaded
// results, and returns the screen to page 1. The backend is not
// contacted; bumping the epoch makes any load still in flight stale
// so it cannot repopulate the cleared view.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.customer = CustomerFilter{}
	c.contact = ContactFilter{}
	c.addressLine = AddressLineFilter{}
	c.columns = ColumnFilterSet{}
	c.page = 1
	c.searchExecuted = false
	c.emptyWarning = false
	c.loading = false
	c.loadFailed = false
	c.items = []directory.Address{}
	c.total = 0
	c.totalPages = 1
}

// SetColumnFilter sets the substring pattern of a single column.
// Column filters never trigger a backend call.
func (c *Controller) SetColumnFilter(col Column, pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.columns == nil {
		c.columns = ColumnFilterSet{}
	}
	c.columns[col] = pattern
}

// SetColumnFilters replaces the whole column filter set.
func (c *Controller) SetColumnFilters(filters ColumnFilterSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.columns = filters.clone()
}

// Snapshot copies the current state for rendering. Visible holds the
// loaded page narrowed by the column filters.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]directory.Address, len(c.items))
	copy(items, c.items)

	return Snapshot{
		Group:              c.group,
		Customer:           c.customer,
		Contact:            c.contact,
		AddressLine:        c.addressLine,
		ColumnFilters:      c.columns.clone(),
		Page:               c.page,
		PageSize:           PageSize,
		SortField:          c.sortField,
		SortDir:            c.sortDir,
		SearchExecuted:     c.searchExecuted,
		EmptyFilterWarning: c.emptyWarning,
		Loading:            c.loading,
		LoadFailed:         c.loadFailed,
		Items:              items,
		Visible:            VisibleItems(items, c.columns),
		Total:              c.total,
		TotalPages:         c.totalPages,
		Epoch:              c.epoch,
	}
}

// load fetches the page described by the current query state. The
// epoch captured before the call decides whether the response may be
// applied: a load that was overtaken by a newer one (or by Reset)
// discards its response without touching any state.
func (c *Controller) load(ctx context.Context) error {
	c.mu.Lock()
	c.epoch++
	myEpoch := c.epoch
	c.loading = true
	query := c.queryLocked()
	c.mu.Unlock()

	page, err := c.dir.SearchAddresses(ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if myEpoch != c.epoch {
		observability.SearchLoadsTotal.WithLabelValues("stale").Inc()
		c.log.Debug("discarding stale search response",
			"epoch", myEpoch,
			"current", c.epoch,
			"group", query.Group,
		)
		return nil
	}

	c.loading = false
	if err != nil {
		observability.SearchLoadsTotal.WithLabelValues("error").Inc()
		c.log.Error("address search failed",
			"group", query.Group,
			"page", query.Page,
			"sort", query.Sort,
			"error", err,
		)
		c.items = []directory.Address{}
		c.total = 0
		c.totalPages = 1
		c.loadFailed = true
		return err
	}

	observability.SearchLoadsTotal.WithLabelValues("ok").Inc()
	c.items = page.Items
	c.total = page.Total
	c.totalPages = page.TotalPages
	if c.totalPages < 1 {
		c.totalPages = 1
	}
	c.loadFailed = false
	return nil
}

func (c *Controller) queryLocked() directory.SearchQuery {
	return directory.SearchQuery{
		Group:    c.group,
		Filters:  c.activeFilterLocked().Values(),
		Page:     c.page,
		PageSize: PageSize,
		Sort:     c.sortField,
		Dir:      c.sortDir,
	}
}

func (c *Controller) activeFilterLocked() Filter {
	switch c.group {
	case directory.GroupContact:
		return c.contact
	case directory.GroupAddressLine:
		return c.addressLine
	default:
		return c.customer
	}
}

func sortableField(field string) bool {
	switch Column(field) {
	case ColumnKdn, ColumnSuchname, ColumnName1, ColumnPlz, ColumnOrt:
		return true
	}
	return false
}
