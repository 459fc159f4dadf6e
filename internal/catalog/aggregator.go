// Package catalog aggregates the four backend event collections into one
// deduplicated, normalized, role-filtered list.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/campushub/campus-events/internal/api"
	"github.com/campushub/campus-events/internal/metrics"
	"github.com/campushub/campus-events/internal/model"
)

// Mode selects which slice of the catalog an aggregation pass produces.
type Mode string

const (
	// ModeUpcoming keeps events whose horizon is at or after the reference
	// time.
	ModeUpcoming Mode = "upcoming"
	// ModePast keeps events whose horizon is before the reference time.
	ModePast Mode = "past"
	// ModeRegisterable keeps upcoming events whose registration deadline,
	// when present, has not passed. This is the feed the registration page
	// uses.
	ModeRegisterable Mode = "registerable"
)

// ErrAllSourcesFailed is returned when every event source errored, e.g. the
// backend rejected our credentials outright. Individual source failures are
// tolerated and never surface here.
var ErrAllSourcesFailed = errors.New("catalog: all event sources failed")

// Backend is the slice of the campus API the aggregator reads. The api
// package's Client satisfies it.
type Backend interface {
	UpcomingEvents(ctx context.Context, role string) ([]api.GenericEvent, error)
	Workshops(ctx context.Context) ([]api.Workshop, error)
	Trips(ctx context.Context) ([]api.Trip, error)
	Bazaars(ctx context.Context) ([]api.Bazaar, error)
	AcceptedVendorApplications(ctx context.Context, bazaarID string) ([]api.VendorApplication, error)
	VendorProfile(ctx context.Context, vendorID string) (*api.VendorProfile, error)
	AcceptedBoothApplications(ctx context.Context, bazaarID string) ([]api.BoothApplication, error)
	UserProfile(ctx context.Context, userID string) (*api.UserProfile, error)
}

// Aggregator produces catalog snapshots from the backend collections.
type Aggregator struct {
	backend Backend
	logger  *slog.Logger
}

// New creates an Aggregator.
func New(backend Backend, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{backend: backend, logger: logger}
}

// sourceNames index the fetch slots in dedup-priority order: an id seen in
// an earlier source wins over the same id from a later one.
var sourceNames = [4]string{"events", "workshops", "bazaars", "trips"}

// Aggregate fetches all four collections concurrently, normalizes and
// deduplicates them, applies the role restriction, partitions by mode
// against asOf, and returns the result sorted by start date ascending.
//
// A failed source contributes zero events; Aggregate only errors when every
// source failed.
func (a *Aggregator) Aggregate(ctx context.Context, role string, asOf time.Time, mode Mode) ([]model.NormalizedEvent, error) {
	var (
		results [4][]model.NormalizedEvent
		errs    [4]error
		wg      sync.WaitGroup
	)

	fetches := [4]func(context.Context) ([]model.NormalizedEvent, error){
		func(ctx context.Context) ([]model.NormalizedEvent, error) { return a.fetchGeneric(ctx, role) },
		a.fetchWorkshops,
		a.fetchBazaars,
		a.fetchTrips,
	}
	for i, fetch := range fetches {
		i, fetch := i, fetch
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = fetch(ctx)
		}()
	}
	wg.Wait()

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			metrics.SourceFailures.WithLabelValues(sourceNames[i]).Inc()
			a.logger.Warn("event source unavailable",
				slog.String("source", sourceNames[i]),
				slog.String("error", err.Error()))
		}
	}
	if failed == len(errs) {
		return nil, ErrAllSourcesFailed
	}

	// Dedup by id, first source wins, in slot order.
	seen := make(map[string]bool)
	var merged []model.NormalizedEvent
	for _, batch := range results {
		for _, ev := range batch {
			if ev.ID == "" || seen[ev.ID] {
				continue
			}
			seen[ev.ID] = true
			merged = append(merged, ev)
		}
	}

	var out []model.NormalizedEvent
	for _, ev := range merged {
		if !ev.RoleAllowed(role) {
			continue
		}
		if !inMode(&ev, asOf, mode) {
			continue
		}
		out = append(out, ev)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	metrics.CatalogSize.WithLabelValues(string(mode)).Set(float64(len(out)))
	return out, nil
}

func inMode(ev *model.NormalizedEvent, asOf time.Time, mode Mode) bool {
	upcoming := !ev.Horizon().Before(asOf)
	switch mode {
	case ModePast:
		return !upcoming
	case ModeRegisterable:
		if !upcoming {
			return false
		}
		// A past registration deadline excludes an otherwise upcoming event
		// from the registerable feed.
		return ev.RegistrationDeadline.IsZero() || !ev.RegistrationDeadline.Before(asOf)
	default:
		return upcoming
	}
}

func (a *Aggregator) fetchGeneric(ctx context.Context, role string) ([]model.NormalizedEvent, error) {
	records, err := a.backend.UpcomingEvents(ctx, role)
	if err != nil {
		return nil, err
	}
	events := make([]model.NormalizedEvent, 0, len(records))
	for _, rec := range records {
		events = append(events, normalizeGeneric(rec))
	}
	return events, nil
}

func (a *Aggregator) fetchWorkshops(ctx context.Context) ([]model.NormalizedEvent, error) {
	records, err := a.backend.Workshops(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]model.NormalizedEvent, 0, len(records))
	for _, rec := range records {
		events = append(events, normalizeWorkshop(rec, a.resolveProfessors(ctx, rec)))
	}
	return events, nil
}

// resolveProfessors prefers the precomputed comma-joined string and falls
// back to one concurrent lookup per professor id. A failed lookup drops
// that name silently; there is no retry.
func (a *Aggregator) resolveProfessors(ctx context.Context, rec api.Workshop) []string {
	if names := splitProfessors(rec.ProfessorsString); len(names) > 0 {
		return names
	}
	if len(rec.ProfessorIDs) == 0 {
		return nil
	}

	resolved := make([]string, len(rec.ProfessorIDs))
	var wg sync.WaitGroup
	for i, id := range rec.ProfessorIDs {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			profile, err := a.backend.UserProfile(ctx, id)
			if err != nil {
				a.logger.Debug("professor lookup failed",
					slog.String("workshop", rec.ID), slog.String("professor", id))
				return
			}
			resolved[i] = profile.DisplayName()
		}()
	}
	wg.Wait()

	names := make([]string, 0, len(resolved))
	for _, name := range resolved {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (a *Aggregator) fetchTrips(ctx context.Context) ([]model.NormalizedEvent, error) {
	records, err := a.backend.Trips(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]model.NormalizedEvent, 0, len(records))
	for _, rec := range records {
		events = append(events, normalizeTrip(rec))
	}
	return events, nil
}

func (a *Aggregator) fetchBazaars(ctx context.Context) ([]model.NormalizedEvent, error) {
	records, err := a.backend.Bazaars(ctx)
	if err != nil {
		return nil, err
	}

	events := make([]model.NormalizedEvent, len(records))
	var wg sync.WaitGroup
	for i, rec := range records {
		i, rec := i, rec
		wg.Add(1)
		go func() {
			defer wg.Done()
			vendors, booths := a.enrichBazaar(ctx, rec.ID)
			events[i] = normalizeBazaar(rec, vendors, booths)
		}()
	}
	wg.Wait()
	return events, nil
}

// enrichBazaar fetches a bazaar's accepted vendors and booths. Any per-item
// failure drops just that vendor or booth; a failed list fetch leaves the
// bazaar unenriched but present.
func (a *Aggregator) enrichBazaar(ctx context.Context, bazaarID string) ([]model.Vendor, []model.Booth) {
	var (
		vendors []model.Vendor
		booths  []model.Booth
		wg      sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		apps, err := a.backend.AcceptedVendorApplications(ctx, bazaarID)
		if err != nil {
			a.logger.Debug("vendor applications fetch failed",
				slog.String("bazaar", bazaarID), slog.String("error", err.Error()))
			return
		}
		resolved := make([]model.Vendor, len(apps))
		var inner sync.WaitGroup
		for i, app := range apps {
			i, app := i, app
			inner.Add(1)
			go func() {
				defer inner.Done()
				profile, err := a.backend.VendorProfile(ctx, app.VendorID)
				if err != nil {
					return
				}
				resolved[i] = model.Vendor{
					ID:          profile.ID,
					Name:        profile.CompanyName,
					Description: profile.Description,
				}
			}()
		}
		inner.Wait()
		for _, v := range resolved {
			if v.ID != "" {
				vendors = append(vendors, v)
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		apps, err := a.backend.AcceptedBoothApplications(ctx, bazaarID)
		if err != nil {
			a.logger.Debug("booth applications fetch failed",
				slog.String("bazaar", bazaarID), slog.String("error", err.Error()))
			return
		}
		for _, app := range apps {
			booths = append(booths, model.Booth{
				ID:     app.ID,
				Name:   app.BoothName,
				Vendor: app.VendorName,
			})
		}
	}()

	wg.Wait()
	return vendors, booths
}

// BumpCapacity increments CapacityCurrent on the snapshot for every created
// id. Only newly created registrations count; already-registered entries
// must not be double-counted.
func BumpCapacity(events []model.NormalizedEvent, createdIDs []string) {
	created := make(map[string]bool, len(createdIDs))
	for _, id := range createdIDs {
		created[id] = true
	}
	for i := range events {
		if created[events[i].ID] {
			events[i].CapacityCurrent++
		}
	}
}
