package store

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/store/schema"
)

// toRow converts an entity into the gorm model of its table
func toRow(e domain.Entity) (interface{}, error) {
	h := e.Header()
	base := schema.EntityRow{
		EntityID:    h.ID,
		Time:        h.Time.UTC(),
		RecordID:    h.RecordID,
		Author:      h.Author,
		Kind:        int(h.Kind),
		Payload:     datatypes.JSON(h.Payload),
		ContentHash: h.ContentHash,
	}
	if h.Location != nil {
		lat, lon := h.Location.Lat(), h.Location.Lon()
		base.Lat = &lat
		base.Lon = &lon
	}

	switch v := e.(type) {
	case *domain.User:
		return &schema.User{EntityRow: base, Name: v.Name}, nil
	case *domain.Product:
		return &schema.Product{EntityRow: base, Title: v.Title, Price: v.Price, Currency: v.Currency, Category: v.Category}, nil
	case *domain.Listing:
		return &schema.Listing{EntityRow: base, MerchantID: v.MerchantID, Relays: datatypes.JSONSlice[string](v.Relays)}, nil
	case *domain.Message:
		return &schema.Message{EntityRow: base, SenderID: v.SenderID, RecipientID: v.RecipientID}, nil
	case *domain.Inquiry:
		return &schema.Inquiry{EntityRow: base, CustomerID: v.CustomerID, MerchantID: v.MerchantID, ListingID: v.ListingID}, nil
	case *domain.Customer:
		return &schema.Customer{EntityRow: base, MerchantID: v.MerchantID}, nil
	case *domain.Shopper:
		return &schema.Shopper{EntityRow: base}, nil
	case *domain.Transaction:
		return &schema.Transaction{EntityRow: base, FundingSource: v.FundingSource}, nil
	case *domain.Review:
		return &schema.Review{EntityRow: base, SubjectID: v.SubjectID, Rating: v.Rating}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported entity type %T", domain.ErrUnknownClass, e)
	}
}

// toHeader converts the shared columns of a row
func toHeader(r *schema.EntityRow) domain.EntityHeader {
	h := domain.EntityHeader{
		ID:          r.EntityID,
		Time:        r.Time.UTC(),
		RecordID:    r.RecordID,
		Author:      r.Author,
		Kind:        domain.Kind(r.Kind),
		Payload:     json.RawMessage(r.Payload),
		ContentHash: r.ContentHash,
	}
	if r.Lat != nil && r.Lon != nil {
		h.Location = &orb.Point{*r.Lon, *r.Lat}
	}
	return h
}

// findAll runs q and converts every row with conv
func findAll[R any](q *gorm.DB, conv func(*R) domain.Entity) ([]domain.Entity, error) {
	var rows []R
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	entities := make([]domain.Entity, 0, len(rows))
	for i := range rows {
		entities = append(entities, conv(&rows[i]))
	}
	return entities, nil
}

// findEntities runs q against the row model of class
func findEntities(q *gorm.DB, class domain.EntityClass) ([]domain.Entity, error) {
	switch class {
	case domain.ClassUser:
		return findAll(q, func(r *schema.User) domain.Entity {
			return &domain.User{EntityHeader: toHeader(&r.EntityRow), Name: r.Name}
		})
	case domain.ClassProduct:
		return findAll(q, func(r *schema.Product) domain.Entity {
			return &domain.Product{EntityHeader: toHeader(&r.EntityRow), Title: r.Title, Price: r.Price, Currency: r.Currency, Category: r.Category}
		})
	case domain.ClassListing:
		return findAll(q, func(r *schema.Listing) domain.Entity {
			return &domain.Listing{EntityHeader: toHeader(&r.EntityRow), MerchantID: r.MerchantID, Relays: []string(r.Relays)}
		})
	case domain.ClassMessage:
		return findAll(q, func(r *schema.Message) domain.Entity {
			return &domain.Message{EntityHeader: toHeader(&r.EntityRow), SenderID: r.SenderID, RecipientID: r.RecipientID}
		})
	case domain.ClassInquiry:
		return findAll(q, func(r *schema.Inquiry) domain.Entity {
			return &domain.Inquiry{EntityHeader: toHeader(&r.EntityRow), CustomerID: r.CustomerID, MerchantID: r.MerchantID, ListingID: r.ListingID}
		})
	case domain.ClassCustomer:
		return findAll(q, func(r *schema.Customer) domain.Entity {
			return &domain.Customer{EntityHeader: toHeader(&r.EntityRow), MerchantID: r.MerchantID}
		})
	case domain.ClassShopper:
		return findAll(q, func(r *schema.Shopper) domain.Entity {
			return &domain.Shopper{EntityHeader: toHeader(&r.EntityRow)}
		})
	case domain.ClassTransaction:
		return findAll(q, func(r *schema.Transaction) domain.Entity {
			return &domain.Transaction{EntityHeader: toHeader(&r.EntityRow), FundingSource: r.FundingSource}
		})
	case domain.ClassReview:
		return findAll(q, func(r *schema.Review) domain.Entity {
			return &domain.Review{EntityHeader: toHeader(&r.EntityRow), SubjectID: r.SubjectID, Rating: r.Rating}
		})
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownClass, class)
	}
}
