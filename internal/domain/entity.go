package domain

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb"
)

// EntityHeader holds the fields every entity class shares
type EntityHeader struct {
	// ID is the logical entity identifier; with Time it forms the primary key
	ID string `json:"id"`
	// Time is the source-asserted creation time of the record this row came from
	Time time.Time `json:"time"`
	// RecordID is the identifier of the originating record
	RecordID string `json:"record_id"`
	// Author is the public key that signed the originating record
	Author string `json:"author"`
	// Kind is the record kind the entity was mapped from
	Kind Kind `json:"kind"`
	// Location is nil when the record carried no geolocation
	Location *orb.Point `json:"location,omitempty"`
	// Payload holds the record content and tags as JSON
	Payload json.RawMessage `json:"payload"`
	// ContentHash is the sha256 of the canonical payload
	ContentHash string `json:"content_hash"`
}

// Entity is the validated, schema-typed projection of a record.
// The set of implementations is closed; see the types below.
type Entity interface {
	Class() EntityClass
	Header() *EntityHeader
	sealed()
}

// EntityKey is the composite primary key of an entity row
type EntityKey struct {
	Class EntityClass
	ID    string
	Time  time.Time
}

// KeyOf returns the primary key of an entity
func KeyOf(e Entity) EntityKey {
	h := e.Header()
	return EntityKey{Class: e.Class(), ID: h.ID, Time: h.Time}
}

// User is a marketplace participant profile
type User struct {
	EntityHeader
	Name string `json:"name,omitempty"`
}

// Product is a priced item offered by a merchant
type Product struct {
	EntityHeader
	Title    string  `json:"title,omitempty"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Category string  `json:"category,omitempty"`
}

// Listing is a merchant storefront announcement
type Listing struct {
	EntityHeader
	MerchantID string   `json:"merchant_id"`
	Relays     []string `json:"relays,omitempty"`
}

// Message is a direct message between two participants
type Message struct {
	EntityHeader
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
}

// Inquiry is a customer question about a listing
type Inquiry struct {
	EntityHeader
	CustomerID string `json:"customer_id"`
	MerchantID string `json:"merchant_id"`
	ListingID  string `json:"listing_id"`
}

// Customer links a buyer to a merchant
type Customer struct {
	EntityHeader
	MerchantID string `json:"merchant_id"`
}

// Shopper is a buyer profile with an optional location
type Shopper struct {
	EntityHeader
}

// Transaction records a purchase and how it was funded
type Transaction struct {
	EntityHeader
	FundingSource string `json:"funding_source"`
}

// Review is a rating of a product or merchant
type Review struct {
	EntityHeader
	SubjectID string  `json:"subject_id"`
	Rating    float64 `json:"rating"`
}

func (*User) Class() EntityClass        { return ClassUser }
func (*Product) Class() EntityClass     { return ClassProduct }
func (*Listing) Class() EntityClass     { return ClassListing }
func (*Message) Class() EntityClass     { return ClassMessage }
func (*Inquiry) Class() EntityClass     { return ClassInquiry }
func (*Customer) Class() EntityClass    { return ClassCustomer }
func (*Shopper) Class() EntityClass     { return ClassShopper }
func (*Transaction) Class() EntityClass { return ClassTransaction }
func (*Review) Class() EntityClass      { return ClassReview }

func (e *EntityHeader) Header() *EntityHeader { return e }

func (*User) sealed()        {}
func (*Product) sealed()     {}
func (*Listing) sealed()     {}
func (*Message) sealed()     {}
func (*Inquiry) sealed()     {}
func (*Customer) sealed()    {}
func (*Shopper) sealed()     {}
func (*Transaction) sealed() {}
func (*Review) sealed()      {}
