package catalog

import (
	"strings"
	"time"

	"github.com/campushub/campus-events/internal/api"
	"github.com/campushub/campus-events/internal/model"
)

// timeFormats are the timestamp layouts the backend collections use,
// tried in order.
var timeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime parses a backend timestamp, returning the zero time for empty
// or unparsable input.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// sniffKind guesses an event's kind from its title when the source record
// carries no usable type field. Conferences have no kind of their own and
// fall through to the generic event kind.
func sniffKind(title string) model.EventKind {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "workshop"):
		return model.KindWorkshop
	case strings.Contains(lower, "bazaar"):
		return model.KindBazaar
	case strings.Contains(lower, "trip"):
		return model.KindTrip
	case strings.Contains(lower, "conference"):
		return model.KindEvent
	default:
		return model.KindEvent
	}
}

// resolveKind prefers the source's explicit type field and falls back to
// title sniffing.
func resolveKind(sourceType, title string) model.EventKind {
	switch strings.ToLower(strings.TrimSpace(sourceType)) {
	case "workshop":
		return model.KindWorkshop
	case "trip":
		return model.KindTrip
	case "bazaar":
		return model.KindBazaar
	case "":
		return sniffKind(title)
	default:
		return model.KindEvent
	}
}

// splitProfessors splits a precomputed comma-joined professor string into
// the ordered name list.
func splitProfessors(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// firstNonEmpty returns the first non-blank string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func normalizeGeneric(rec api.GenericEvent) model.NormalizedEvent {
	name := firstNonEmpty(rec.EventName, rec.Title, rec.Name)
	kind := resolveKind(rec.Type, name)
	return model.NormalizedEvent{
		ID:                   rec.ID,
		DisplayName:          name,
		Description:          rec.Description,
		Kind:                 kind,
		Category:             strings.ToLower(string(kind)),
		Date:                 parseTime(rec.Date),
		EndDate:              parseTime(rec.EndDate),
		RegistrationDeadline: parseTime(rec.RegistrationDeadline),
		Location:             rec.Location,
		Fee:                  max(rec.Fee, 0),
		CapacityMax:          rec.Capacity,
		CapacityCurrent:      rec.RegisteredCount,
		ProfessorNames:       splitProfessors(rec.ProfessorsString),
		AllowedRoles:         rec.AllowedRoles,
	}
}

func normalizeWorkshop(rec api.Workshop, professorNames []string) model.NormalizedEvent {
	return model.NormalizedEvent{
		ID:                   rec.ID,
		DisplayName:          firstNonEmpty(rec.WorkshopName, rec.Title),
		Description:          rec.Description,
		Kind:                 model.KindWorkshop,
		Category:             "workshop",
		Date:                 parseTime(rec.StartDate),
		EndDate:              parseTime(rec.EndDate),
		RegistrationDeadline: parseTime(rec.RegistrationDeadline),
		Location:             rec.Location,
		Fee:                  max(rec.Fee, 0),
		CapacityMax:          rec.Capacity,
		CapacityCurrent:      rec.CurrentRegistrations,
		ProfessorNames:       professorNames,
		AllowedRoles:         rec.AllowedRoles,
	}
}

func normalizeTrip(rec api.Trip) model.NormalizedEvent {
	return model.NormalizedEvent{
		ID:                   rec.ID,
		DisplayName:          rec.TripName,
		Description:          rec.Description,
		Kind:                 model.KindTrip,
		Category:             "trip",
		Date:                 parseTime(rec.StartDateTime),
		EndDate:              parseTime(rec.EndDateTime),
		RegistrationDeadline: parseTime(rec.RegistrationDeadline),
		Location:             rec.Destination,
		Fee:                  max(rec.Price, 0),
		CapacityMax:          rec.MaxParticipants,
		CapacityCurrent:      rec.CurrentParticipants,
		AllowedRoles:         rec.AllowedRoles,
	}
}

func normalizeBazaar(rec api.Bazaar, vendors []model.Vendor, booths []model.Booth) model.NormalizedEvent {
	return model.NormalizedEvent{
		ID:                   rec.ID,
		DisplayName:          rec.BazaarName,
		Description:          rec.Description,
		Kind:                 model.KindBazaar,
		Category:             "bazaar",
		Date:                 parseTime(rec.StartDate),
		EndDate:              parseTime(rec.EndDate),
		RegistrationDeadline: parseTime(rec.RegistrationDeadline),
		Location:             rec.Location,
		Fee:                  max(rec.Fee, 0),
		CapacityMax:          rec.Capacity,
		CapacityCurrent:      rec.RegisteredCount,
		AllowedRoles:         rec.AllowedRoles,
		Vendors:              vendors,
		Booths:               booths,
	}
}
