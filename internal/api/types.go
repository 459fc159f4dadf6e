package api

// Wire shapes returned by the campus backend. The four event collections are
// duck-typed in the backend and disagree on field names for the same concept
// (date vs startDate vs startDateTime, fee vs price, capacity vs
// maxParticipants). Each collection gets its own record type here and is
// normalized exactly once, at the aggregation boundary.

// GenericEvent is one record from the upcoming-events feed.
type GenericEvent struct {
	ID                   string   `json:"id"`
	EventName            string   `json:"eventName"`
	Name                 string   `json:"name"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	Type                 string   `json:"type"`
	Date                 string   `json:"date"`
	EndDate              string   `json:"endDate"`
	Location             string   `json:"location"`
	Fee                  float64  `json:"fee"`
	Capacity             int      `json:"capacity"`
	RegisteredCount      int      `json:"registeredCount"`
	AllowedRoles         []string `json:"allowedRoles"`
	RegistrationDeadline string   `json:"registrationDeadline"`
	ProfessorsString     string   `json:"professorsString"`
}

// Workshop is one record from the workshops collection.
type Workshop struct {
	ID                   string   `json:"id"`
	WorkshopName         string   `json:"workshopName"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	StartDate            string   `json:"startDate"`
	EndDate              string   `json:"endDate"`
	Location             string   `json:"location"`
	Fee                  float64  `json:"fee"`
	Capacity             int      `json:"capacity"`
	CurrentRegistrations int      `json:"currentRegistrations"`
	AllowedRoles         []string `json:"allowedRoles"`
	RegistrationDeadline string   `json:"registrationDeadline"`
	// ProfessorsString is precomputed by some backend versions; when absent
	// the aggregator resolves ProfessorIDs one by one instead.
	ProfessorsString string   `json:"professorsString"`
	ProfessorIDs     []string `json:"professorIds"`
}

// Trip is one record from the trips collection.
type Trip struct {
	ID                   string   `json:"id"`
	TripName             string   `json:"tripName"`
	Description          string   `json:"description"`
	StartDateTime        string   `json:"startDateTime"`
	EndDateTime          string   `json:"endDateTime"`
	Destination          string   `json:"destination"`
	Price                float64  `json:"price"`
	MaxParticipants      int      `json:"maxParticipants"`
	CurrentParticipants  int      `json:"currentParticipants"`
	AllowedRoles         []string `json:"allowedRoles"`
	RegistrationDeadline string   `json:"registrationDeadline"`
}

// Bazaar is one record from the bazaars collection. Vendor and booth
// enrichment is fetched separately per bazaar.
type Bazaar struct {
	ID                   string   `json:"id"`
	BazaarName           string   `json:"bazaarName"`
	Description          string   `json:"description"`
	StartDate            string   `json:"startDate"`
	EndDate              string   `json:"endDate"`
	Location             string   `json:"location"`
	Fee                  float64  `json:"fee"`
	Capacity             int      `json:"capacity"`
	RegisteredCount      int      `json:"registeredCount"`
	AllowedRoles         []string `json:"allowedRoles"`
	RegistrationDeadline string   `json:"registrationDeadline"`
}

// VendorApplication is a vendor's application to a bazaar. Only accepted
// applications reach the aggregator.
type VendorApplication struct {
	ID       string `json:"id"`
	BazaarID string `json:"bazaarId"`
	VendorID string `json:"vendorId"`
	Status   string `json:"status"`
}

// VendorProfile is a vendor's public profile.
type VendorProfile struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName"`
	Description string `json:"description"`
}

// BoothApplication is an accepted booth application for a bazaar.
type BoothApplication struct {
	ID         string `json:"id"`
	BazaarID   string `json:"bazaarId"`
	BoothName  string `json:"boothName"`
	VendorName string `json:"vendorName"`
	Status     string `json:"status"`
}

// UserProfile is a user record, used to resolve professor display names and
// to read the authoritative wallet balance.
type UserProfile struct {
	ID        string  `json:"id"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	Wallet    float64 `json:"wallet"`
}

// DisplayName joins the profile's name parts.
func (u *UserProfile) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// PaymentIntentRequest is the payload for creating a card payment intent.
type PaymentIntentRequest struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

// PaymentIntent is the backend's handle on a pending card charge. The
// client secret is handed to the payment provider for confirmation.
type PaymentIntent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// RegistrationEntry is one line of a batch registration request.
type RegistrationEntry struct {
	Name                  string  `json:"name"`
	Email                 string  `json:"email"`
	UserID                string  `json:"userId"`
	UserType              string  `json:"userType"`
	EventID               string  `json:"eventId"`
	EventType             string  `json:"eventType"`
	AmountPaid            float64 `json:"amountPaid"`
	PaymentMethod         string  `json:"paymentMethod"`
	StripePaymentIntentID string  `json:"stripePaymentIntentId,omitempty"`
}

// BatchRegisterRequest registers the current user for every cart item in a
// single call. Per-item outcomes come back in BatchRegisterResponse.
type BatchRegisterRequest struct {
	CurrentUserID string              `json:"currentUserId"`
	Registrations []RegistrationEntry `json:"registrations"`
}

// CreatedRegistration is one registration the backend actually created.
type CreatedRegistration struct {
	ID      string `json:"id"`
	EventID string `json:"eventId"`
}

// RegistrationError is one entry the backend rejected.
type RegistrationError struct {
	EventID string `json:"eventId"`
	Reason  string `json:"reason"`
}

// CalendarResults reports the optional calendar-sync side effect.
type CalendarResults struct {
	Added int `json:"added"`
}

// BatchRegisterResponse is the batch endpoint's reply. User, when present,
// carries the authoritative post-payment wallet balance.
type BatchRegisterResponse struct {
	User            *UserProfile          `json:"user,omitempty"`
	Registrations   []CreatedRegistration `json:"registrations"`
	Errors          []RegistrationError   `json:"errors,omitempty"`
	CalendarResults *CalendarResults      `json:"calendarResults,omitempty"`
	CalendarError   string                `json:"calendarError,omitempty"`
}

// CancelResponse is the reply to cancelling a single registration. The user
// record carries the refunded wallet balance.
type CancelResponse struct {
	User    *UserProfile `json:"user,omitempty"`
	Message string       `json:"message"`
}
