package schema

import (
	"gorm.io/datatypes"
)

// User represents the users table
type User struct {
	EntityRow
	Name string `gorm:"column:name;type:text"`
}

func (User) TableName() string { return "users" }

// Product represents the products table
type Product struct {
	EntityRow
	Title    string  `gorm:"column:title;type:text"`
	Price    float64 `gorm:"column:price;not null"`
	Currency string  `gorm:"column:currency;not null;type:text"`
	Category string  `gorm:"column:category;type:text"`
}

func (Product) TableName() string { return "products" }

// Listing represents the listings table
type Listing struct {
	EntityRow
	MerchantID string                      `gorm:"column:merchant_id;not null;type:text"`
	Relays     datatypes.JSONSlice[string] `gorm:"column:relays;type:jsonb"`
}

func (Listing) TableName() string { return "listings" }

// Message represents the messages table
type Message struct {
	EntityRow
	SenderID    string `gorm:"column:sender_id;not null;type:text"`
	RecipientID string `gorm:"column:recipient_id;not null;type:text"`
}

func (Message) TableName() string { return "messages" }

// Inquiry represents the inquiries table
type Inquiry struct {
	EntityRow
	CustomerID string `gorm:"column:customer_id;not null;type:text"`
	MerchantID string `gorm:"column:merchant_id;not null;type:text"`
	ListingID  string `gorm:"column:listing_id;not null;type:text"`
}

func (Inquiry) TableName() string { return "inquiries" }

// Customer represents the customers table
type Customer struct {
	EntityRow
	MerchantID string `gorm:"column:merchant_id;not null;type:text"`
}

func (Customer) TableName() string { return "customers" }

// Shopper represents the shoppers table
type Shopper struct {
	EntityRow
}

func (Shopper) TableName() string { return "shoppers" }

// Transaction represents the transactions table
type Transaction struct {
	EntityRow
	FundingSource string `gorm:"column:funding_source;not null;type:text"`
}

func (Transaction) TableName() string { return "transactions" }

// Review represents the reviews table
type Review struct {
	EntityRow
	SubjectID string  `gorm:"column:subject_id;not null;type:text"`
	Rating    float64 `gorm:"column:rating;not null"`
}

func (Review) TableName() string { return "reviews" }
