// Package reservation records customer holds on fabric and tells the staff about them.
package reservation

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"fabrics-catalog-service/internal/airtable"
	"fabrics-catalog-service/internal/domain"
	"fabrics-catalog-service/internal/notify"
)

// UnknownProductName stands in when the reserved product cannot be looked up.
const UnknownProductName = "unknown product"

// Airtable column names of the Reservations table.
const (
	fieldProduct  = "Product"
	fieldQuantity = "Quantity Meters"
	fieldName     = "Customer Name"
	fieldPhone    = "Customer Phone"
	fieldAddress  = "Customer Address"
)

// ErrCreateFailed is returned when the reservation could not be written.
var ErrCreateFailed = errors.New("reservation: create failed")

// Request is the customer's reservation input.
type Request struct {
	ProductRecordID string          `json:"productRecordId" validate:"required"`
	QuantityMeters  decimal.Decimal `json:"quantityMeters" validate:"gt=0"`
	CustomerName    string          `json:"customerName" validate:"required,max=255"`
	CustomerPhone   string          `json:"customerPhone" validate:"required,max=32"`
	CustomerAddress string          `json:"customerAddress" validate:"required"`
}

// ValidationError lists the request fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, rule := range e.Fields {
		parts = append(parts, field+" "+rule)
	}
	return "reservation: invalid request: " + strings.Join(parts, ", ")
}

// RecordWriter creates rows in the data source. *airtable.Client implements it.
type RecordWriter interface {
	CreateRecord(ctx context.Context, table string, fields map[string]any) (*airtable.Record, error)
}

// ProductLookup resolves a product for the notification text.
type ProductLookup interface {
	Product(ctx context.Context, id string) (*domain.Product, error)
}

// Notifier fans a text out to the staff.
type Notifier interface {
	Broadcast(ctx context.Context, message string) (notify.BroadcastResult, error)
}

// Publisher emits reservation events.
type Publisher interface {
	PublishReservation(ctx context.Context, r domain.Reservation) error
}

// Service creates reservations.
type Service struct {
	writer    RecordWriter
	table     string
	products  ProductLookup
	notifier  Notifier
	publisher Publisher
	validate  *validator.Validate
	now       func() time.Time
}

// NewService creates a Service. products, notifier and publisher may be nil.
func NewService(writer RecordWriter, table string, products ProductLookup, notifier Notifier, publisher Publisher) *Service {
	return &Service{
		writer:    writer,
		table:     table,
		products:  products,
		notifier:  notifier,
		publisher: publisher,
		validate:  newValidator(),
		now:       time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Validate checks req without touching the data source.
func (s *Service) Validate(req Request) error {
	req = trimmed(req)
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return &ValidationError{Fields: fields}
		}
		return errors.Wrap(err, "reservation: validate")
	}
	return nil
}

// Create validates req, writes it and notifies the staff. Notification and event
// failures are logged and do not fail the reservation.
func (s *Service) Create(ctx context.Context, req Request) (domain.Reservation, error) {
	if err := s.Validate(req); err != nil {
		return domain.Reservation{}, err
	}
	req = trimmed(req)

	rec, err := s.writer.CreateRecord(ctx, s.table, map[string]any{
		fieldProduct:  []string{req.ProductRecordID},
		fieldQuantity: req.QuantityMeters.InexactFloat64(),
		fieldName:     req.CustomerName,
		fieldPhone:    req.CustomerPhone,
		fieldAddress:  req.CustomerAddress,
	})
	if err != nil {
		log.WithError(err).WithField("product", req.ProductRecordID).Error("reservation: write failed")
		return domain.Reservation{}, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}
	if rec == nil || rec.ID == "" {
		return domain.Reservation{}, errors.Wrap(ErrCreateFailed, "no record id returned")
	}

	r := domain.Reservation{
		ID:              rec.ID,
		ProductRecordID: req.ProductRecordID,
		ProductName:     s.productName(ctx, req.ProductRecordID),
		QuantityMeters:  req.QuantityMeters,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		CreatedAt:       s.now().UTC(),
	}
	log.WithFields(log.Fields{"reservation": r.ID, "product": r.ProductRecordID}).Info("reservation: created")

	s.notify(ctx, r)
	if s.publisher != nil {
		if err := s.publisher.PublishReservation(ctx, r); err != nil {
			log.WithError(err).WithField("reservation", r.ID).Warn("reservation: event not published")
		}
	}
	return r, nil
}

func (s *Service) productName(ctx context.Context, id string) string {
	if s.products == nil {
		return UnknownProductName
	}
	p, err := s.products.Product(ctx, id)
	if err != nil || p == nil || p.Name == "" || p.Name == domain.UnknownName {
		if err != nil {
			log.WithError(err).WithField("product", id).Warn("reservation: product name lookup failed")
		}
		return UnknownProductName
	}
	return p.Name
}

func (s *Service) notify(ctx context.Context, r domain.Reservation) {
	if s.notifier == nil {
		return
	}
	result, err := s.notifier.Broadcast(ctx, NotificationText(r))
	if err != nil {
		log.WithError(err).WithField("reservation", r.ID).Warn("reservation: staff not notified")
		return
	}
	if len(result.Failed) > 0 {
		log.WithField("reservation", r.ID).Warnf("reservation: partial staff notification (%s)", result)
	}
}

// NotificationText is the staff message for a new reservation.
func NotificationText(r domain.Reservation) string {
	return fmt.Sprintf("🧾 حجز جديد!\n"+
		"📦 المنتج: %s\n"+
		"📏 الكمية: %s متر\n"+
		"👤 الاسم: %s\n"+
		"📞 الموبايل: %s\n"+
		"📍 العنوان: %s",
		r.ProductName, r.QuantityMeters.String(), r.CustomerName, r.CustomerPhone, r.CustomerAddress)
}

func trimmed(req Request) Request {
	req.ProductRecordID = strings.TrimSpace(req.ProductRecordID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.CustomerAddress = strings.TrimSpace(req.CustomerAddress)
	return req
}
